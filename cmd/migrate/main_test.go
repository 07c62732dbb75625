package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

type fakeSchema struct {
	upSteps   []int
	downSteps []int
	state     postgres.MigrationState
	upErr     error
	statusErr error
}

func (f *fakeSchema) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	return f.upErr
}

func (f *fakeSchema) MigrateDown(_ context.Context, steps int) error {
	f.downSteps = append(f.downSteps, steps)
	return nil
}

func (f *fakeSchema) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return f.state, f.statusErr
}

func envWith(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults to up with env dsn",
			env:  map[string]string{"MARKET_POSTGRES_DSN": " postgres://env "},
			want: options{direction: directionUp, dsn: "postgres://env"},
		},
		{
			name: "flag dsn wins over env",
			args: []string{"-dsn=postgres://flag", "-direction=STATUS"},
			env:  map[string]string{"MARKET_POSTGRES_DSN": "postgres://env"},
			want: options{direction: directionStatus, dsn: "postgres://flag"},
		},
		{
			name: "down rolls back one step by default",
			args: []string{"-direction=down", "-dsn=x"},
			want: options{direction: directionDown, steps: 1, dsn: "x"},
		},
		{
			name: "explicit steps",
			args: []string{"-direction=up", "-steps=2", "-dsn=x"},
			want: options{direction: directionUp, steps: 2, dsn: "x"},
		},
		{name: "missing dsn", args: []string{"-direction=status"}, wantErr: "MARKET_POSTGRES_DSN"},
		{name: "bad direction", args: []string{"-direction=sideways", "-dsn=x"}, wantErr: "unsupported direction"},
		{name: "negative steps", args: []string{"-steps=-1", "-dsn=x"}, wantErr: "steps must be >= 0"},
		{name: "unknown flag", args: []string{"-force"}, wantErr: "flag provided but not defined"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOptions(tc.args, envWith(tc.env))
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("up prints resulting state", func(t *testing.T) {
		db := &fakeSchema{state: postgres.MigrationState{Version: 2, Applied: 2}}
		var out bytes.Buffer

		require.NoError(t, run(ctx, db, options{direction: directionUp}, &out))
		require.Equal(t, []int{0}, db.upSteps)
		require.Equal(t, "migrate up ok: version=2 applied=2 pending=0\n", out.String())
	})

	t.Run("down", func(t *testing.T) {
		db := &fakeSchema{state: postgres.MigrationState{Version: 1, Applied: 1, Pending: 1}}
		var out bytes.Buffer

		require.NoError(t, run(ctx, db, options{direction: directionDown, steps: 1}, &out))
		require.Equal(t, []int{1}, db.downSteps)
		require.True(t, strings.HasPrefix(out.String(), "migrate down ok:"))
	})

	t.Run("status does not migrate", func(t *testing.T) {
		db := &fakeSchema{}
		var out bytes.Buffer

		require.NoError(t, run(ctx, db, options{direction: directionStatus}, &out))
		require.Empty(t, db.upSteps)
		require.Empty(t, db.downSteps)
		require.True(t, strings.HasPrefix(out.String(), "migration status:"))
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		err := run(ctx, &fakeSchema{upErr: boom}, options{direction: directionUp}, &bytes.Buffer{})
		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "migrate up")

		err = run(ctx, &fakeSchema{statusErr: boom}, options{direction: directionStatus}, &bytes.Buffer{})
		require.ErrorContains(t, err, "migration status")
	})
}

func TestRunAgainstPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("MARKET_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("MARKET_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	require.NoError(t, run(ctx, store, options{direction: directionUp}, &out))
	require.Contains(t, out.String(), "pending=0")

	out.Reset()
	require.NoError(t, run(ctx, store, options{direction: directionStatus}, &out))
	require.Contains(t, out.String(), "pending=0")
}
