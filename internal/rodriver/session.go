package rodriver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// session is one incognito context and its page.
type session struct {
	drv  *Driver
	ctx  *rod.Browser
	page *rod.Page
}

var _ browser.DriverSession = (*session)(nil)

func (s *session) p(ctx context.Context) *rod.Page {
	return s.page.Context(ctx)
}

func (s *session) Ready(ctx context.Context) (bool, error) {
	if _, err := s.p(ctx).Info(); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

func (s *session) Navigate(ctx context.Context, url string) error {
	p := s.p(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load after navigate: %w", err)
	}
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	info, err := s.p(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *session) Title(ctx context.Context) (string, error) {
	info, err := s.p(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (s *session) Find(ctx context.Context, selector string) (browser.Element, error) {
	return &element{s: s, selector: selector}, nil
}

func (s *session) FindAll(ctx context.Context, selector string) (browser.ElementList, error) {
	els, err := s.p(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return &elementList{s: s, els: els}, nil
}

func (s *session) SendKeys(ctx context.Context, keys ...string) error {
	return typeKeys(s.p(ctx), keys)
}

func (s *session) Execute(ctx context.Context, js string) (gson.JSON, error) {
	res, err := s.p(ctx).Eval(js)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value, nil
}

func (s *session) AddInitScript(ctx context.Context, js string) error {
	_, err := s.p(ctx).EvalOnNewDocument(js)
	return err
}

// Restart opens the replacement first so a launch failure leaves the
// receiver usable.
func (s *session) Restart(ctx context.Context) (browser.DriverSession, error) {
	next, err := s.drv.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Close(ctx); err != nil {
		s.drv.logger.Warn("rodriver: close restarted session", "error", err)
	}
	return next, nil
}

func (s *session) Fork(ctx context.Context) (browser.DriverSession, error) {
	return s.drv.NewSession(ctx)
}

// Close disposes the incognito context, which also closes its page.
func (s *session) Close(ctx context.Context) error {
	return s.ctx.Context(ctx).Close()
}
