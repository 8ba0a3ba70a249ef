package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harpoon/pkg/logging"
)

type fakeStore struct {
	deleted int64
	err     error
	ages    []time.Duration
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	f.ages = append(f.ages, age)
	return f.deleted, f.err
}

func TestRunOncePassesMaxAge(t *testing.T) {
	st := &fakeStore{deleted: 4}
	j := New(Config{Store: st, Logger: logging.NewLogger(), MaxAge: 30 * 24 * time.Hour})

	j.RunOnce(context.Background())
	require.Equal(t, []time.Duration{30 * 24 * time.Hour}, st.ages)
}

func TestRunOnceDefaultsAndErrors(t *testing.T) {
	st := &fakeStore{err: errors.New("db down")}
	j := New(Config{Store: st, Logger: logging.NewLogger()})

	j.RunOnce(context.Background())
	require.Equal(t, []time.Duration{90 * 24 * time.Hour}, st.ages)
}
