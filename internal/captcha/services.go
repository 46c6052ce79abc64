package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

const (
	twoCaptchaURL  = "https://2captcha.com"
	antiCaptchaURL = "https://api.anti-captcha.com"
)

// PollOptions control how long the paid services are polled for a result.
type PollOptions struct {
	BaseURL  string
	Interval time.Duration
	MaxPolls int
}

func (p PollOptions) withDefaults(base string) PollOptions {
	if p.BaseURL == "" {
		p.BaseURL = base
	}
	if p.Interval <= 0 {
		p.Interval = 3 * time.Second
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = 30
	}
	return p
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TwoCaptcha solves images through the 2Captcha in.php/res.php API.
type TwoCaptcha struct {
	key  string
	poll PollOptions
	http *resty.Client
}

func NewTwoCaptcha(apiKey string, poll PollOptions) *TwoCaptcha {
	poll = poll.withDefaults(twoCaptchaURL)
	return &TwoCaptcha{
		key:  apiKey,
		poll: poll,
		http: resty.New().SetBaseURL(poll.BaseURL).SetTimeout(30 * time.Second),
	}
}

type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (t *TwoCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	var submit twoCaptchaResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":    t.key,
			"method": "base64",
			"body":   base64.StdEncoding.EncodeToString(image),
			"json":   "1",
		}).
		Post("/in.php")
	if err != nil {
		return "", eris.Wrap(err, "failed to submit to 2captcha")
	}
	if err := json.Unmarshal(resp.Body(), &submit); err != nil {
		return "", eris.Wrap(err, "failed to decode 2captcha response")
	}
	if submit.Status != 1 {
		return "", fmt.Errorf("2captcha submission failed: %s", submit.Request)
	}

	for i := 0; i < t.poll.MaxPolls; i++ {
		if err := wait(ctx, t.poll.Interval); err != nil {
			return "", err
		}

		resp, err := t.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":    t.key,
				"action": "get",
				"id":     submit.Request,
				"json":   "1",
			}).
			Get("/res.php")
		if err != nil {
			continue
		}

		var result twoCaptchaResponse
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			continue
		}
		if result.Status == 1 {
			return result.Request, nil
		}
		if result.Request != "CAPCHA_NOT_READY" {
			return "", fmt.Errorf("2captcha error: %s", result.Request)
		}
	}

	return "", fmt.Errorf("2captcha timeout")
}

// AntiCaptcha solves images through the Anti-Captcha task API.
type AntiCaptcha struct {
	key  string
	poll PollOptions
	http *resty.Client
}

func NewAntiCaptcha(apiKey string, poll PollOptions) *AntiCaptcha {
	poll = poll.withDefaults(antiCaptchaURL)
	return &AntiCaptcha{
		key:  apiKey,
		poll: poll,
		http: resty.New().SetBaseURL(poll.BaseURL).SetTimeout(30 * time.Second),
	}
}

type antiCaptchaTask struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

type antiCaptchaCreate struct {
	ClientKey string          `json:"clientKey"`
	Task      antiCaptchaTask `json:"task"`
}

type antiCaptchaCreated struct {
	ErrorID int `json:"errorId"`
	TaskID  int `json:"taskId"`
}

type antiCaptchaResult struct {
	ErrorID  int    `json:"errorId"`
	Status   string `json:"status"`
	Solution struct {
		Text string `json:"text"`
	} `json:"solution"`
}

func (a *AntiCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	var created antiCaptchaCreated
	_, err := a.http.R().
		SetContext(ctx).
		SetBody(antiCaptchaCreate{
			ClientKey: a.key,
			Task:      antiCaptchaTask{Type: "ImageToTextTask", Body: base64.StdEncoding.EncodeToString(image)},
		}).
		SetResult(&created).
		Post("/createTask")
	if err != nil {
		return "", eris.Wrap(err, "failed to create anti-captcha task")
	}
	if created.ErrorID != 0 {
		return "", fmt.Errorf("anti-captcha error: %d", created.ErrorID)
	}

	for i := 0; i < a.poll.MaxPolls; i++ {
		if err := wait(ctx, a.poll.Interval); err != nil {
			return "", err
		}

		var result antiCaptchaResult
		_, err := a.http.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{"clientKey": a.key, "taskId": created.TaskID}).
			SetResult(&result).
			Post("/getTaskResult")
		if err != nil {
			continue
		}
		if result.ErrorID != 0 {
			return "", fmt.Errorf("anti-captcha error: %d", result.ErrorID)
		}
		if result.Status == "ready" {
			return result.Solution.Text, nil
		}
	}

	return "", fmt.Errorf("anti-captcha timeout")
}
