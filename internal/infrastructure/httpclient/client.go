package httpclient

import (
	"crypto/tls"
	"net/http"

	"DSEReports/internal/config"
)

// New builds the client shared by the locator and the fetcher. The DSE
// server has shipped a broken certificate chain, so verification can be
// switched off through configuration.
func New(cfg config.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}
