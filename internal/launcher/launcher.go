// Package launcher boots an AgentPlatform gRPC server, either embedded in
// the current process or as a subprocess, and owns the accompanying port
// selection and lifecycle plumbing.
package launcher

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nodeforge/agentplatform/internal/agentproto"
)

// BootstrapEnvVar carries a JSON-encoded BootstrapConfig to a subprocess
// launched via LaunchSubprocess. A dedicated env var keeps the
// child's bootstrap parameters explicit and reproducible rather than
// relying on ambient global state.
const BootstrapEnvVar = "AGENTPLATFORM_BOOTSTRAP"

// Mode names the two ways a server can be started. No function in this
// package takes a Mode; each mode has its own entry point, named below.
type Mode int

const (
	// ModeEmbedded runs the gRPC server on a goroutine inside the calling
	// process, by calling Serve there.
	ModeEmbedded Mode = iota
	// ModeSubprocess re-execs the current binary with BootstrapEnvVar set
	// (LaunchSubprocess); the child reads that variable with ReadBootstrap
	// and then calls New and Serve itself.
	ModeSubprocess
)

// BootstrapConfig is the reproducible description of how a subprocess
// server should configure itself, passed through BootstrapEnvVar instead
// of flags so it survives re-exec with an otherwise-empty argument list.
type BootstrapConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	SharedSecret string `json:"shared_secret,omitempty"`
	LocalMode    bool   `json:"local_mode"`
}

// ServerRegistrar registers the AgentPlatform servicer (or any other gRPC
// service) against a freshly constructed grpc.Server. internal/platform's
// AgentPlatform, wrapped in a small adapter, satisfies this.
type ServerRegistrar interface {
	Register(s *grpc.Server)
}

// RegistrarFunc adapts a plain func to ServerRegistrar.
type RegistrarFunc func(s *grpc.Server)

// Register calls f.
func (f RegistrarFunc) Register(s *grpc.Server) { f(s) }

// Launcher owns a listening gRPC server's lifecycle: start and graceful
// shutdown. It does not hold a child process; LaunchSubprocess returns the
// child's *exec.Cmd to its caller instead.
type Launcher struct {
	host string
	port int

	sharedSecret string

	grpcServer *grpc.Server
	listener   net.Listener
	cmd        *exec.Cmd

	logger *zap.Logger
	done   chan struct{}
}

// CheckPort reports whether port is already occupied on host, by trying to
// connect to it. A successful connect means something is listening; any
// dial error (including "connection refused") means the port is free.
func CheckPort(host string, port int) bool {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// FindAvailablePort asks the OS for an ephemeral port by binding to :0,
// then releases it immediately. There is an unavoidable race between
// release and reuse by a caller in the same process — the original
// implementation carries the same caveat.
func FindAvailablePort(host string) (int, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:0", host))
	if err != nil {
		return 0, fmt.Errorf("launcher: find available port: %w", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port, nil
}

// New resolves host/port and constructs a Launcher ready to Serve. A port
// of 0 auto-selects an available one. A requested port that's already
// occupied is not an error: New transparently falls back to a freshly
// chosen port and logs a warning, the way a bind conflict is handled at
// launch time rather than surfaced to the caller.
func New(host string, port int, sharedSecret string, logger *zap.Logger) (*Launcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if host == "" {
		host = "localhost"
	}

	if port == 0 {
		selected, err := FindAvailablePort(host)
		if err != nil {
			return nil, err
		}
		logger.Warn("no port specified, auto-selected an available port",
			zap.String("host", host), zap.Int("port", selected))
		port = selected
	} else if CheckPort(host, port) {
		selected, err := FindAvailablePort(host)
		if err != nil {
			return nil, fmt.Errorf("launcher: port %d occupied on %s, and no alternative could be found: %w", port, host, err)
		}
		logger.Warn("requested port is already in use, auto-selected a different one",
			zap.String("host", host), zap.Int("requested_port", port), zap.Int("port", selected))
		port = selected
	}

	return &Launcher{
		host:         host,
		port:         port,
		sharedSecret: sharedSecret,
		logger:       logger.Named("launcher"),
		done:         make(chan struct{}),
	}, nil
}

// Host returns the resolved host.
func (l *Launcher) Host() string { return l.host }

// Port returns the resolved port (never 0 after New succeeds).
func (l *Launcher) Port() int { return l.port }

// Serve builds the grpc.Server, registers reg against it, and blocks
// serving until ctx is cancelled or a fatal error occurs. Intended to run
// on its own goroutine for ModeEmbedded, or as the body of a subprocess's
// main for ModeSubprocess.
func (l *Launcher) Serve(ctx context.Context, reg ServerRegistrar) error {
	addr := fmt.Sprintf("%s:%d", l.host, l.port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("launcher: listen on %s: %w", addr, err)
	}
	l.listener = lis

	opts := []grpc.ServerOption{agentproto.ServerCodecOption()}
	if l.sharedSecret != "" {
		opts = append(opts, grpc.UnaryInterceptor(l.authInterceptor))
	} else {
		l.logger.Warn("no shared secret configured, call_func RPCs are unauthenticated")
	}

	l.grpcServer = grpc.NewServer(opts...)
	reg.Register(l.grpcServer)

	go func() {
		<-ctx.Done()
		l.logger.Info("agent platform server shutting down gracefully")
		stopped := make(chan struct{})
		go func() {
			l.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			l.logger.Warn("graceful stop timed out after 10s, forcing stop")
			l.grpcServer.Stop()
		}
		close(l.done)
	}()

	l.logger.Info("agent platform server listening", zap.String("addr", addr))
	if err := l.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("launcher: serve: %w", err)
	}
	return nil
}

func (l *Launcher) authInterceptor(
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("agent-secret")
	if len(values) == 0 || values[0] != l.sharedSecret {
		return nil, status.Error(codes.Unauthenticated, "invalid or missing agent-secret")
	}
	return handler(ctx, req)
}

// WaitUntilTerminate blocks until Serve's shutdown goroutine has finished
// draining the server (only meaningful for ModeEmbedded; ModeSubprocess
// callers wait on the *exec.Cmd returned by LaunchSubprocess instead).
func (l *Launcher) WaitUntilTerminate() {
	<-l.done
}

// LaunchSubprocess re-execs the current binary (os.Args[0]) with
// BootstrapEnvVar carrying cfg, plus any extra args (e.g. a "serve"
// subcommand name the child's CLI dispatches on). The child inherits
// stdout/stderr for log visibility.
func LaunchSubprocess(cfg BootstrapConfig, extraArgs ...string) (*exec.Cmd, error) {
	data, err := marshalBootstrap(cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(os.Args[0], extraArgs...)
	cmd.Env = append(os.Environ(), BootstrapEnvVar+"="+string(data))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: start subprocess: %w", err)
	}
	return cmd, nil
}

// ReadBootstrap reads and decodes BootstrapEnvVar, for a subprocess's main
// to call on startup. ok is false if the variable isn't set (i.e. this
// process wasn't launched via LaunchSubprocess).
func ReadBootstrap() (cfg BootstrapConfig, ok bool, err error) {
	raw, present := os.LookupEnv(BootstrapEnvVar)
	if !present {
		return BootstrapConfig{}, false, nil
	}
	cfg, err = unmarshalBootstrap(raw)
	return cfg, true, err
}
