package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
)

// Client shells out to yt-dlp for per-reel metadata and media.
type Client struct {
	binary      string
	cookiesFile string
	timeout     time.Duration
	log         logger.Logger

	// runner is replaceable in tests.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	// Binary overrides the executable name. Default "yt-dlp".
	Binary string

	// CookiesFile is passed with --cookies when the file exists. A
	// missing file downgrades to a warning; many reels are public.
	CookiesFile string

	// Timeout bounds each invocation. Default 30s.
	Timeout time.Duration

	Logger logger.Logger
}

// New builds a Client and verifies the binary is on PATH.
func New(opts Options) (*Client, error) {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	if _, err := exec.LookPath(opts.Binary); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeExternalTool,
			fmt.Sprintf("%s not found on PATH", opts.Binary), err)
	}

	c := &Client{
		binary:      opts.Binary,
		cookiesFile: opts.CookiesFile,
		timeout:     opts.Timeout,
		log:         opts.Logger,
	}
	c.runner = c.runCommand

	if opts.CookiesFile != "" {
		if _, err := os.Stat(opts.CookiesFile); err != nil {
			c.log.WithField("file", opts.CookiesFile).
				Warn("cookies file not found, proceeding without authentication")
			c.cookiesFile = ""
		}
	}
	return c, nil
}

func (c *Client) runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrap(errors.ErrorTypeExternalTool, msg, err)
	}
	return stdout.Bytes(), nil
}

// baseArgs returns the flags common to every invocation.
func (c *Client) baseArgs() []string {
	args := []string{"--no-warnings", "--no-playlist"}
	if c.cookiesFile != "" {
		args = append(args, "--cookies", c.cookiesFile)
	}
	return args
}

// Description fetches the post caption. Whitespace runs are collapsed
// to single spaces so the text fits a single ledger cell.
func (c *Client) Description(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(c.baseArgs(), "--get-description", url)
	out, err := c.runner(ctx, c.binary, args...)
	if err != nil {
		return "", err
	}
	return CollapseWhitespace(string(out)), nil
}

// UploadDate fetches the post's upload date in yt-dlp's YYYYMMDD form.
func (c *Client) UploadDate(ctx context.Context, url string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(c.baseArgs(), "--print", "upload_date", url)
	out, err := c.runner(ctx, c.binary, args...)
	if err != nil {
		return time.Time{}, err
	}
	raw := strings.TrimSpace(string(out))
	t, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrorTypeExternalTool,
			fmt.Sprintf("unparseable upload date %q", raw), err)
	}
	return t, nil
}

// Probe checks the URL resolves to downloadable media without
// fetching it.
func (c *Client) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(c.baseArgs(), "--simulate", url)
	_, err := c.runner(ctx, c.binary, args...)
	return err
}

// Download fetches the media to outputPath. The caller owns the
// timeout; downloads routinely outlive the metadata budget.
func (c *Client) Download(ctx context.Context, url, outputPath string) error {
	args := append(c.baseArgs(), "-f", "best[ext=mp4]/best", "-o", outputPath, url)
	_, err := c.runner(ctx, c.binary, args...)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return errors.New(errors.ErrorTypeExternalTool,
			"download reported success but produced no file")
	}
	return nil
}

// CollapseWhitespace flattens all whitespace runs, including
// newlines, to single spaces and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
