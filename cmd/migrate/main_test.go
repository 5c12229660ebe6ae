package main

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand(nil)
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.ElementsMatch(t, []string{"up", "down", "status", "version"}, names)
}

func TestMigrationCommandReportsConnectFailure(t *testing.T) {
	open := func(context.Context) (*sqlx.DB, error) { return nil, errors.New("refused") }
	cmd := newRootCommand(open)
	cmd.SetArgs([]string{"up"})

	err := cmd.Execute()
	require.ErrorContains(t, err, "connect database: refused")
}

func TestMigrationCommandRejectsArguments(t *testing.T) {
	cmd := newRootCommand(func(context.Context) (*sqlx.DB, error) {
		t.Fatal("database should not be opened")
		return nil, nil
	})
	cmd.SetArgs([]string{"version", "extra"})

	require.Error(t, cmd.Execute())
}
