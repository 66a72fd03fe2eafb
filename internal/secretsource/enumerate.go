package secretsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

const (
	maxPageRetries = 3
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// VersionSelection pins secrets to explicit versions. With Explicit set,
// only secrets named in Versions (any case) are enumerated.
type VersionSelection struct {
	Explicit bool
	Versions map[string]string
}

func (v VersionSelection) version(name string) (string, bool) {
	if ver, ok := v.Versions[name]; ok {
		return ver, true
	}
	for k, ver := range v.Versions {
		if strings.EqualFold(k, name) {
			return ver, true
		}
	}
	return "", false
}

// Enumerator drains a Source page by page.
type Enumerator struct {
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEnumerator returns an enumerator that backs off on the wall clock.
func NewEnumerator() *Enumerator {
	return &Enumerator{sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	d := retryBaseDelay
	for i := 1; i < attempt && d < retryMaxDelay; i++ {
		d *= 2
	}
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}

// Enumerate lists every secret in src matching filter, ordered by name then
// version. Retryable page failures are retried up to three times.
func (e *Enumerator) Enumerate(ctx context.Context, src Source, filter Filter, versions VersionSelection, req PageRequest) ([]Descriptor, error) {
	if src == nil {
		return nil, dserrors.InvalidArgument("secret source")
	}
	cf, err := filter.compile()
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "filter.regex",
			Value:      filter.Regex,
			Message:    err.Error(),
			Suggestion: "Use RE2 syntax, for example '^app-.*'",
		}
	}

	var results []Descriptor
	token := req.ContinuationToken
	seen := map[string]bool{}
	retries := 0

	for {
		page, err := src.List(ctx, filter, PageRequest{PageSize: req.PageSize, ContinuationToken: token})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if dserrors.IsRetryable(err) && retries < maxPageRetries {
				retries++
				if err := e.sleep(ctx, retryDelay(retries)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, dserrors.ProviderError(src.Name(), "list secrets", err)
		}
		retries = 0

		for _, d := range page.Items {
			if !cf.matches(d) {
				continue
			}
			if versions.Explicit {
				v, ok := versions.version(d.Name)
				if !ok {
					continue
				}
				d.Version = v
			}
			results = append(results, d)
		}

		if page.ContinuationToken == "" {
			break
		}
		if seen[page.ContinuationToken] {
			return nil, fmt.Errorf("%s returned a repeated continuation token", src.Name())
		}
		seen[page.ContinuationToken] = true
		token = page.ContinuationToken
	}

	SortDescriptors(results)
	return results, nil
}
