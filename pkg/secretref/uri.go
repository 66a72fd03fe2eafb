package secretref

import (
	"net/url"
	"strings"
)

const latestVersion = "latest"

// Resolution is the outcome of resolving one secret URI.
type Resolution struct {
	OriginalURI   string `json:"originalUri"`
	ResolvedURI   string `json:"resolvedUri,omitempty"`
	SecretName    string `json:"secretName,omitempty"`
	Version       string `json:"version,omitempty"`
	IsValid       bool   `json:"isValid"`
	FailureReason string `json:"failureReason,omitempty"`
}

// ResolveSecretURI checks that uri names a Key Vault secret
// (https://<vault>.vault.azure.net/secrets/<name>[/<version>]). A missing
// version resolves to "latest" and is appended to ResolvedURI.
func ResolveSecretURI(uri string) Resolution {
	res := Resolution{OriginalURI: uri}
	fail := func(reason string) Resolution {
		res.FailureReason = reason
		return res
	}

	if strings.TrimSpace(uri) == "" {
		return fail("Secret URI is required.")
	}
	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fail("Secret URI is not a valid absolute URI.")
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fail("Secret URI must use https.")
	}
	if !strings.HasSuffix(strings.ToLower(parsed.Hostname()), ".vault.azure.net") {
		return fail("Secret URI host must be a Key Vault endpoint.")
	}

	var segments []string
	for _, s := range strings.Split(strings.Trim(parsed.Path, "/"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 || !strings.EqualFold(segments[0], "secrets") {
		return fail("Secret URI must target a secret resource.")
	}

	res.IsValid = true
	res.SecretName = segments[1]
	if len(segments) >= 3 && strings.TrimSpace(segments[2]) != "" {
		res.Version = segments[2]
		res.ResolvedURI = uri
	} else {
		res.Version = latestVersion
		res.ResolvedURI = strings.TrimRight(uri, "/") + "/" + latestVersion
	}
	return res
}
