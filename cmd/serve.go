package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codetrail/internal/analyzer"
	"codetrail/internal/config"
	"codetrail/internal/daemon"
)

type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	Database  string    `json:"database"`
}

var (
	flagServeAddr    string
	flagServeIdle    time.Duration
	flagServeDetach  bool
	flagServePIDFile string
	flagServeLogFile string
	flagServeChild   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recording daemon with its local HTTP API",
	RunE:  runServe,
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runServeStatus,
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runServeStop,
}

func init() {
	cfg := loadConfig()
	dataDir := config.DataDir(cfg)
	defaultPID := filepath.Join(dataDir, "codetraild.pid")
	defaultLog := filepath.Join(dataDir, "codetraild.log")

	serveCmd.PersistentFlags().StringVar(&flagServeAddr, "addr", cfg.Daemon.Addr, "HTTP listen address")
	serveCmd.PersistentFlags().DurationVar(&flagServeIdle, "idle-timeout", cfg.IdleTimeout(), "Shut down after this long without requests (0 disables)")
	serveCmd.PersistentFlags().StringVar(&flagServePIDFile, "pid-file", defaultPID, "PID file path")
	serveCmd.PersistentFlags().StringVar(&flagServeLogFile, "log-file", defaultLog, "Log file path for detached mode")

	serveCmd.Flags().BoolVar(&flagServeDetach, "detach", false, "Run daemon as a background process")
	serveCmd.Flags().BoolVar(&flagServeChild, "child", false, "Internal: mark detached child process")
	_ = serveCmd.Flags().MarkHidden("child")

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if flagServeDetach && flagServeChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagServeDetach {
		return startServeDetached()
	}

	return runServeForeground()
}

func startServeDetached() error {
	if err := ensureDaemonNotRunning(flagServePIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagServePIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagServeLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	logf, err := os.OpenFile(flagServeLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logf
	child.Stderr = logf
	child.Stdin = nil
	child.Env = os.Environ()

	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagServePIDFile)
	fmt.Printf("  API: http://%s/healthz\n", flagServeAddr)
	fmt.Printf("  Log: %s\n", flagServeLogFile)
	return nil
}

func runServeForeground() error {
	if err := ensureDaemonNotRunning(flagServePIDFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(flagServePIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagServePIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagServePIDFile) }()

	cfg := loadConfig()

	state := daemonRuntimeState{
		PID:       pid,
		Addr:      flagServeAddr,
		StartedAt: time.Now(),
		Database:  config.DatabasePath(cfg),
	}
	_ = writeState(statePath(flagServePIDFile), state)
	defer func() { _ = os.Remove(statePath(flagServePIDFile)) }()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var an daemon.Analyzer
	if client := analyzer.NewClient(config.AnalyzerAPIKey(cfg), cfg.Analyzer.BaseURL, cfg.Analyzer.Model); client != nil {
		an = client
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := daemon.New(daemon.Config{
		Addr:            flagServeAddr,
		IdleTimeout:     flagServeIdle,
		CleanupInterval: cfg.CleanupInterval(),
		Search:          searchOptions(cfg),
	}, st, an, logger)

	fmt.Printf("  codetrail daemon listening on http://%s\n", flagServeAddr)
	fmt.Printf("  Database: %s\n", config.DatabasePath(cfg))
	fmt.Printf("  Stop with: codetrail serve stop --pid-file %s\n", flagServePIDFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServeStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagServePIDFile)
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}

	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagServeAddr
	if st, err := readState(statePath(flagServePIDFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		fmt.Printf("  API: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API: HTTP %d\n", resp.StatusCode)
		return nil
	}
	fmt.Printf("  API: healthy\n")
	return nil
}

func runServeStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagServePIDFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagServePIDFile)
			_ = os.Remove(statePath(flagServePIDFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureDaemonNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st daemonRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (daemonRuntimeState, error) {
	var st daemonRuntimeState
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
