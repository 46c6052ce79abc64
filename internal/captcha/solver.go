// Package captcha turns CAPTCHA images into answers and bounds how often a
// portal may reject them.
package captcha

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/rotisserie/eris"
)

// Solver reads the text of a CAPTCHA image.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, image []byte) (string, error)

func (f SolverFunc) Solve(ctx context.Context, image []byte) (string, error) { return f(ctx, image) }

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// AlphaNumeric strips everything except ASCII letters and digits.
func AlphaNumeric(s string) string {
	return nonAlnum.ReplaceAllString(s, "")
}

// Tesseract runs the tesseract binary on the image in page-segmentation
// mode 6 (a single uniform block of text).
type Tesseract struct {
	Path string
}

func (t Tesseract) Solve(ctx context.Context, image []byte) (string, error) {
	path := t.Path
	if path == "" {
		path = "tesseract"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "stdin", "stdout", "--psm", "6")
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "tesseract failed: %s", strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Chain asks each solver in turn and returns the first non-empty answer.
type Chain struct {
	Solvers []Solver
	Log     *logger.Logger
}

func (c Chain) Solve(ctx context.Context, image []byte) (string, error) {
	var lastErr error
	for i, s := range c.Solvers {
		answer, err := s.Solve(ctx, image)
		if err != nil {
			lastErr = err
			if c.Log != nil {
				c.Log.Warn("CAPTCHA solver failed", "solver", i, "error", err)
			}
			continue
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("no solver produced an answer")
}

// Settings select and configure solvers by name.
type Settings struct {
	Names          []string
	TesseractPath  string
	TwoCaptchaKey  string
	AntiCaptchaKey string
	Poll           PollOptions
}

// Build assembles the configured solvers into a Chain. Paid services
// without an API key are skipped.
func Build(s Settings, log *logger.Logger) (Solver, error) {
	var solvers []Solver
	for _, name := range s.Names {
		switch name {
		case "tesseract":
			solvers = append(solvers, Tesseract{Path: s.TesseractPath})
		case "2captcha", "twocaptcha":
			if s.TwoCaptchaKey == "" {
				log.Warn("2Captcha solver configured without TWOCAPTCHA_API_KEY, skipping")
				continue
			}
			solvers = append(solvers, NewTwoCaptcha(s.TwoCaptchaKey, s.Poll))
		case "anticaptcha", "anti-captcha":
			if s.AntiCaptchaKey == "" {
				log.Warn("Anti-Captcha solver configured without ANTICAPTCHA_API_KEY, skipping")
				continue
			}
			solvers = append(solvers, NewAntiCaptcha(s.AntiCaptchaKey, s.Poll))
		default:
			return nil, fmt.Errorf("unknown captcha solver %q", name)
		}
	}
	if len(solvers) == 0 {
		return nil, fmt.Errorf("no captcha solver available")
	}
	return Chain{Solvers: solvers, Log: log}, nil
}
