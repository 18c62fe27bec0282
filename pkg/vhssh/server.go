// Package vhssh serves an SSH admin console for inspecting and cancelling
// uploads.
package vhssh

import (
	"context"
	"fmt"
	"net"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const DefaultAdminUser = "admin"

type Config struct {
	Host         string
	Port         string
	HostKeyPath  string
	AdminUser    string
	PasswordHash string
}

// ConfigFrom reads the SSH_* keys. An empty port disables the console.
func ConfigFrom(c config.Configer) Config {
	return Config{
		Host:         c.GetKeyWithDefault("SSH_HOST", "localhost"),
		Port:         c.GetKey("SSH_PORT"),
		HostKeyPath:  c.GetKeyWithDefault("SSH_HOST_KEY_PATH", ".ssh/vidhub_ed25519"),
		AdminUser:    c.GetKeyWithDefault("SSH_ADMIN_USER", DefaultAdminUser),
		PasswordHash: c.GetKey("SSH_ADMIN_PASSWORD_HASH"),
	}
}

func (c Config) Enabled() bool {
	return c.Port != ""
}

type Server struct {
	cfg     Config
	console *Console
	server  *ssh.Server
}

func NewServer(cfg Config, uploads UploadAdmin) (*Server, error) {
	if cfg.PasswordHash == "" {
		return nil, errors.New("SSH_ADMIN_PASSWORD_HASH is not set")
	}

	if cfg.AdminUser == "" {
		cfg.AdminUser = DefaultAdminUser
	}

	s := &Server{cfg: cfg, console: NewConsole(uploads)}

	var err error
	s.server, err = wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.Host, cfg.Port)),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithMiddleware(s.commandMiddleware),
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating SSH server: %s", err)
	}

	return s, nil
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	clog.UsingCtx(clog.SSH).Infof("SSH admin console listening on %s", s.server.Addr)
	return ignoreClosed(s.server.ListenAndServe())
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	return ignoreClosed(s.server.Serve(l))
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		clog.UsingCtx(clog.SSH).Errorf("Error shutting down SSH console: %s", err)
	}

	return ignoreClosed(err)
}

func ignoreClosed(err error) error {
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	return s.checkPassword(ctx.User(), password)
}

func (s *Server) checkPassword(user, password string) bool {
	if user != s.cfg.AdminUser {
		clog.UsingCtx(clog.SSH).Warnf("Rejected SSH login for unknown user %q", user)
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)) == nil
}

// commandMiddleware ends the session once the command has run.
func (s *Server) commandMiddleware(_ ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		cmd := sess.Command()
		clog.UsingCtx(clog.SSH).Infof("%s ran %q", sess.User(), cmd)

		_ = sess.Exit(s.console.Run(cmd, sess, sess.Stderr()))
	}
}
