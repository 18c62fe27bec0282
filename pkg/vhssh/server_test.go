package vhssh

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	gossh "golang.org/x/crypto/ssh"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	s, err := NewServer(Config{
		Host:         "127.0.0.1",
		Port:         "0",
		HostKeyPath:  filepath.Join(t.TempDir(), "host_ed25519"),
		PasswordHash: string(hash),
	}, &fakeUploads{})
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.server.Close() })

	return s, l.Addr().String()
}

func dial(addr, user, password string) (*gossh.Client, error) {
	return gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            user,
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
	})
}

func TestConsoleOverSSH(t *testing.T) {
	_, addr := newTestServer(t)

	client, err := dial(addr, "admin", "s3cret")
	require.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	out, err := sess.Output("stats")
	require.NoError(t, err)
	assert.Contains(t, string(out), "total=3")

	sess, err = client.NewSession()
	require.NoError(t, err)
	_, err = sess.Output("reboot")
	var exitErr *gossh.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitStatus())
}

func TestPasswordAuth(t *testing.T) {
	s, addr := newTestServer(t)

	assert.True(t, s.checkPassword("admin", "s3cret"))
	assert.False(t, s.checkPassword("admin", "wrong"))
	assert.False(t, s.checkPassword("root", "s3cret"))

	_, err := dial(addr, "admin", "wrong")
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.NewMapConfig(map[string]string{"SSH_PORT": "2222", "SSH_ADMIN_PASSWORD_HASH": "x"}))
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, DefaultAdminUser, cfg.AdminUser)

	assert.False(t, ConfigFrom(config.NewMapConfig(nil)).Enabled())

	_, err := NewServer(Config{Port: "2222"}, &fakeUploads{})
	assert.Error(t, err)
}
