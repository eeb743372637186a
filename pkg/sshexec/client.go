package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Executor runs shell commands on the remote host and moves files to and
// from it. Components consume this interface; Client is the SSH-backed
// implementation.
type Executor interface {
	Execute(ctx context.Context, command string) (exitCode int, output string, err error)
	GetFile(remotePath, localPath string) error
	PutFile(localPath, remotePath string) error
	RemoveFile(remotePath string) error
}

// Client is an SSH executor. A fresh session is opened per call; the
// underlying connection is dialed lazily and kept for the client's
// lifetime.
type Client struct {
	Host     string
	User     string
	Password string
	Port     int

	client *ssh.Client
	logger *zap.SugaredLogger
}

func NewClient(host, user, password string, port int) *Client {
	if port == 0 {
		port = 22
	}
	return &Client{
		Host:     host,
		User:     user,
		Password: password,
		Port:     port,
		logger:   zap.S().Named("ssh"),
	}
}

func (c *Client) dial() (*ssh.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	config := &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // test hosts are reprovisioned constantly
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	c.client = client
	return client, nil
}

// Execute runs the command remotely and returns its exit code together
// with combined stdout and stderr. A non-zero exit status is reported
// through the code, not the error.
func (c *Client) Execute(ctx context.Context, command string) (int, string, error) {
	client, err := c.dial()
	if err != nil {
		return -1, "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return -1, "", fmt.Errorf("unable to create SSH session: %w", err)
	}
	defer c.closeQuietly(session.Close)

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return -1, buf.String(), ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), buf.String(), nil
		}
		return -1, buf.String(), fmt.Errorf("remote command failed: %w", err)
	}
	return 0, buf.String(), nil
}

// GetFile copies a remote file to the local path.
func (c *Client) GetFile(remotePath, localPath string) error {
	return c.withSFTP(func(client *sftp.Client) error {
		src, err := client.Open(remotePath)
		if err != nil {
			return fmt.Errorf("opening remote %s: %w", remotePath, err)
		}
		defer c.closeQuietly(src.Close)

		dst, err := os.Create(localPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", localPath, err)
		}
		defer c.closeQuietly(dst.Close)

		_, err = io.Copy(dst, src)
		return err
	})
}

// PutFile copies a local file to the remote path.
func (c *Client) PutFile(localPath, remotePath string) error {
	return c.withSFTP(func(client *sftp.Client) error {
		src, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", localPath, err)
		}
		defer c.closeQuietly(src.Close)

		dst, err := client.Create(remotePath)
		if err != nil {
			return fmt.Errorf("creating remote %s: %w", remotePath, err)
		}
		defer c.closeQuietly(dst.Close)

		_, err = io.Copy(dst, src)
		return err
	})
}

// RemoveFile deletes a remote file. A missing file is not an error.
func (c *Client) RemoveFile(remotePath string) error {
	return c.withSFTP(func(client *sftp.Client) error {
		err := client.Remove(remotePath)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})
}

// Close tears down the underlying connection, if any.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) withSFTP(fn func(*sftp.Client) error) error {
	client, err := c.dial()
	if err != nil {
		return err
	}

	ftp, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("unable to open sftp subsystem: %w", err)
	}
	defer c.closeQuietly(ftp.Close)

	return fn(ftp)
}

func (c *Client) closeQuietly(f func() error) {
	if err := f(); err != nil {
		c.logger.Debugw("close failed", "err", err)
	}
}
