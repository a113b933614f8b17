package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/spf13/cobra"
)

const daemonBinary = "studycoachd"

func newDaemonCmds() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "start",
			Short: "Start the studycoach daemon",
			RunE:  func(cmd *cobra.Command, args []string) error { return cmdStart(cmd.OutOrStdout()) },
		},
		{
			Use:   "stop",
			Short: "Stop the studycoach daemon",
			RunE:  func(cmd *cobra.Command, args []string) error { return cmdStop(cmd.OutOrStdout()) },
		},
		{
			Use:   "status",
			Short: "Show daemon status",
			RunE:  func(cmd *cobra.Command, args []string) error { return cmdStatus(cmd.OutOrStdout()) },
		},
		{
			Use:   "logs",
			Short: "Show recent daemon logs",
			RunE:  func(cmd *cobra.Command, args []string) error { return cmdLogs(cmd.OutOrStdout()) },
		},
	}
}

// daemonAddr returns the base URL of the local daemon
func daemonAddr() string {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		cfg = config.DefaultLocalConfig()
	}
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}

// cmdStart starts the daemon in the background
func cmdStart(out io.Writer) error {
	addr := daemonAddr()
	if isRunning(addr) {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsureStudyCoachDir()
	if err != nil {
		return fmt.Errorf("setup studycoach directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = dir
	cmd.Stdout = nil
	cmd.Stderr = nil
	detachDaemon(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", addr)
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'studycoach logs')")
}

// cmdStop sends SIGTERM to the pid recorded by the daemon
func cmdStop(out io.Writer) error {
	addr := daemonAddr()
	if !isRunning(addr) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	dir, err := config.StudyCoachDir()
	if err != nil {
		return err
	}
	pid, err := readPID(filepath.Join(dir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

type daemonStatus struct {
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	LLMProviders    []string `json:"llm_providers"`
	DefaultProvider string   `json:"default_provider"`
	Storage         string   `json:"storage"`
	Quizzes         bool     `json:"quizzes"`
	Events          bool     `json:"events"`
}

// cmdStatus shows daemon status
func cmdStatus(out io.Writer) error {
	addr := daemonAddr()
	if !isRunning(addr) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	status, err := fetchStatus(addr)
	if err != nil {
		return err
	}
	printStatus(out, addr, status)
	return nil
}

func fetchStatus(addr string) (*daemonStatus, error) {
	resp, err := http.Get(addr + "/v1/status")
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &status, nil
}

func printStatus(out io.Writer, addr string, status *daemonStatus) {
	providers := strings.Join(status.LLMProviders, ", ")
	if providers == "" {
		providers = "(none)"
	}
	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Storage:   %s\n", status.Storage)
	fmt.Fprintf(out, "Providers: %s\n", providers)
	fmt.Fprintf(out, "Quizzes:   %v\n", status.Quizzes)
	fmt.Fprintf(out, "Events:    %v\n", status.Events)
	fmt.Fprintf(out, "Address:   %s\n", addr)
}

// cmdLogs prints the tail of the daemon log
func cmdLogs(out io.Writer) error {
	dir, err := config.StudyCoachDir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(dir, "logs", daemonBinary+".log")

	file, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	return tailLines(file, out, 4096)
}

// tailLines copies roughly the last size bytes of f to out, starting at a
// line boundary
func tailLines(f *os.File, out io.Writer, size int64) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := max(info.Size()-size, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(f)
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the studycoachd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath(daemonBinary); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), daemonBinary)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/" + daemonBinary,
		"./" + daemonBinary,
		"./cmd/studycoachd/" + daemonBinary,
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s binary not found (build with 'go build ./cmd/studycoachd')", daemonBinary)
}
