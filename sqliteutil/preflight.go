// Package sqliteutil holds helpers shared by SQLite-backed stores.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultPreflightTimeout = 2 * time.Second

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// PreflightResult reports the outcome of a SQLite preflight check.
type PreflightResult struct {
	Healthy        bool   // No issues detected; safe to open.
	Fresh          bool   // No database existed; nothing was checked.
	Quarantined    bool   // The database was renamed aside so a fresh one can be created.
	QuarantinePath string // Path of the quarantined main file.
	Elapsed        time.Duration
	CheckError     error
}

// Preflight runs a bounded WAL checkpoint and quick_check against an existing
// database. A database that fails either step (or times out) is renamed with
// its sidecars to <path>.bad-<timestamp> so the caller starts from an empty
// cache instead of stalling on a damaged file.
func Preflight(ctx context.Context, path string, timeout time.Duration, logf func(string, ...any)) (PreflightResult, error) {
	var res PreflightResult
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if logf == nil {
		logf = log.Printf
	}
	if timeout <= 0 {
		timeout = defaultPreflightTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("preflight: ensure dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		res.Fresh = true
		res.Healthy = true
		return res, nil
	}

	start := time.Now()
	existing := existingFiles(path)
	checkErr := check(ctx, path, timeout)
	res.Elapsed = time.Since(start)
	res.CheckError = checkErr
	if checkErr == nil {
		res.Healthy = true
		return res, nil
	}

	dest, err := quarantine(path, existing, time.Now().UTC())
	if err != nil {
		return res, fmt.Errorf("preflight: quarantine failed: %w (check=%v)", err, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = dest
	logf("sqlite preflight: %s failed check (%v); quarantined to %s after %s", path, checkErr, dest, res.Elapsed)
	return res, nil
}

func check(parent context.Context, path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return fmt.Errorf("busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return fmt.Errorf("quick_check: %w", err)
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return nil
}

func existingFiles(path string) []string {
	out := []string{path}
	for _, suffix := range sidecarSuffixes {
		if _, err := os.Stat(path + suffix); err == nil {
			out = append(out, path+suffix)
		}
	}
	return out
}

// quarantine renames path and any sidecars seen before the check. Sidecars
// removed by the checkpoint itself are skipped.
func quarantine(path string, files []string, now time.Time) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	for _, f := range files {
		if err := os.Rename(f, f+suffix); err != nil {
			if errors.Is(err, os.ErrNotExist) && f != path {
				continue
			}
			return "", err
		}
	}
	for _, s := range sidecarSuffixes {
		_ = os.Remove(path + s)
	}
	return path + suffix, nil
}
