package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
	"github.com/quantumqp/portal/storage/database"
	inmemdb "github.com/quantumqp/portal/storage/database/inmem"
	"github.com/quantumqp/portal/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	validate, translator := testutil.NewValidator()

	// start CLI
	return &commandLine{
		usrSvc:  user.NewService(usrRepo, validate, translator),
		usrRepo: usrRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v %s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

type pwdExtra struct {
	pwd string
}

func mockPassword(tt cliTest) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(pwdExtra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	if err := cli.run([]string{"admin", "migrate", "up"}); err != errNoDatabase {
		t.Errorf("cli.run() error = %v, wantErr %v", err, errNoDatabase)
	}

	cli.db = sqlx.NewDb(new(sql.DB), "postgres")
	var gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "post_tags", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Equal(t, database.MigrationsDir, gotDir)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Olu", "olu@quantum.test", "Qu4ntum!Leap", user.RoleUser, false)

	type want struct {
		email string
		role  string
		pwd   string
	}

	tests := []struct {
		cliTest
		want *want
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no email", args: []string{"adduser", "-name", "Ivy"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no password", args: []string{"adduser", "-name", "Ivy", "-email", "ivy@quantum.test"}, wantErr: errHelp}},
		{cliTest: cliTest{
			name: "weak password", args: []string{"adduser", "-name", "Ivy", "-email", "ivy@quantum.test"}, extra: pwdExtra{pwd: "password"},
			wantErrStr: "password: password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		}},
		{
			cliTest: cliTest{name: "user", args: []string{"adduser", "-name", "Ivy", "-email", "Ivy@quantum.test"}, extra: pwdExtra{pwd: "N3w!Secret9"}},
			want:    &want{email: "ivy@quantum.test", role: user.RoleUser, pwd: "N3w!Secret9"},
		},
		{
			cliTest: cliTest{name: "admin", args: []string{"adduser", "-name", "Root", "-email", "root@quantum.test", "-admin"}, extra: pwdExtra{pwd: "R00t!Quantum"}},
			want:    &want{email: "root@quantum.test", role: user.RoleAdmin, pwd: "R00t!Quantum"},
		},
		{
			cliTest: cliTest{name: "existing is promoted and reactivated", args: []string{"adduser", "-name", "Olu A.", "-email", existing.Email, "-admin"}, extra: pwdExtra{pwd: "Pr0moted!Now"}},
			want:    &want{email: existing.Email, role: user.RoleAdmin, pwd: "Pr0moted!Now"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.cliTest)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt.cliTest, err)
			if tt.want == nil || err != nil {
				return
			}

			usr, err := usrRepo.GetUserByEmail(context.Background(), tt.want.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want.role, usr.Role)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(tt.want.pwd))
		})
	}

	usr, err := usrRepo.GetUserByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olu A.", usr.Name)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Olu", "olu@quantum.test", "Qu4ntum!Leap", user.RoleUser, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@quantum.test"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@quantum.test"}, extra: pwdExtra{pwd: "N3w!Secret9"}, wantErrStr: "user not found"},
		{
			name: "similar to user attributes", args: []string{"resetpassword", "-email", usr.Email}, extra: pwdExtra{pwd: "Olu@quantum.test1"},
			wantErrStr: "password: password cannot be similar to user attributes",
		},
		{name: "reset", args: []string{"resetpassword", "-email", "OLU@quantum.test"}, extra: pwdExtra{pwd: "N3w!Secret9"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			if err != nil {
				t.Fatalf("GetUserByID() failed, %v", err)
			}
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
		})
	}
}

func Test_commandLine_deactivate(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "Olu", "olu@quantum.test", "", user.RoleUser, true)

	tests := []cliTest{
		{name: "no args", args: []string{"deactivate"}, wantErr: errHelp},
		{name: "user not found", args: []string{"deactivate", "-email", "lol@quantum.test"}, wantErrStr: "user not found"},
		{name: "deactivate", args: []string{"deactivate", "-email", usr.Email}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsActive)
	assert.True(t, core.IsNotFound(cli.deactivate("ghost@quantum.test")))
}
