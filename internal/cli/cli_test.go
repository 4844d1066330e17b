package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/database"
	"github.com/google/uuid"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateSuperAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	db := []string{"--db-driver", "sqlite", "--sqlite-path", path}

	if _, err := execute(t, append([]string{"migrate"}, db...)...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := execute(t, append([]string{"create-superadmin", "--name", "Root", "--email", "Root@Example.com", "--password", "rootpass1"}, db...)...)
	if err != nil {
		t.Fatalf("create-superadmin: %v", err)
	}
	if !strings.Contains(out, "created SUPERADMIN root@example.com") {
		t.Fatalf("output = %q", out)
	}

	if _, err := execute(t, append([]string{"create-superadmin", "--name", "Root", "--email", "root@example.com", "--password", "rootpass1"}, db...)...); err == nil {
		t.Fatal("duplicate e-mail accepted")
	}
}

func TestCreateSuperAdminRequiresFlags(t *testing.T) {
	if _, err := execute(t, "create-superadmin", "--db-driver", "sqlite", "--sqlite-path", filepath.Join(t.TempDir(), "x.db")); err == nil {
		t.Fatal("expected missing flag error")
	}
}

func TestConfigFileAndUnsupportedDriver(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "taskctl.yaml")
	if err := os.WriteFile(conf, []byte("db-driver: mysql\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "migrate", "--config", conf)
	if err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}

	// флаг важнее файла
	if _, err := execute(t, "migrate", "--config", conf, "--db-driver", "sqlite", "--sqlite-path", filepath.Join(dir, "tasks.db")); err != nil {
		t.Fatalf("flag override: %v", err)
	}
}

func TestSweepTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	conf := cfg.Config{DBDriver: "sqlite", SQLitePath: path}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	tokens := auth.NewTokenRepository(db)
	ctx := context.Background()
	for _, age := range []time.Duration{time.Hour, time.Minute} {
		if err := tokens.Create(ctx, auth.ResetToken{
			ID:        uuid.New(),
			Email:     "a@example.com",
			Token:     uuid.NewString(),
			Kind:      auth.KindLink,
			CreatedAt: time.Now().UTC().Add(-age),
		}); err != nil {
			t.Fatal(err)
		}
	}
	sqlDB, _ := db.DB()
	sqlDB.Close()

	out, err := execute(t, "sweep-tokens", "--db-driver", "sqlite", "--sqlite-path", path, "--reset-token-ttl", "10m")
	if err != nil {
		t.Fatalf("sweep-tokens: %v", err)
	}
	if !strings.Contains(out, "expired 1 reset tokens") {
		t.Fatalf("output = %q", out)
	}
}
