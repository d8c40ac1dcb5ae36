package daemon

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/filen-go/filen-cli/internal/model"
)

// certValidity mirrors the original client's one-year self-signed
// certificate lifetime.
const certValidity = 365 * 24 * time.Hour

// EnsureSSLCert returns the WebDAV daemon's TLS certificate and key
// paths, generating a fresh self-signed pair if none exists yet or the
// existing one has expired (spec §4.8/§4.9's webdav-ssl material).
func (m *Manager) EnsureSSLCert() (certPath, keyPath string, err error) {
	certPath, keyPath = m.store.SSLCertPaths()
	if m.store.HasSSLCert() {
		if valid, err := certStillValid(certPath); err == nil && valid {
			return certPath, keyPath, nil
		}
		m.log.Info().Msg("daemon: ssl certificate missing or expired, generating a new one")
	}
	if err := generateSelfSignedCert(certPath, keyPath); err != nil {
		return "", "", err
	}
	return certPath, keyPath, nil
}

func certStillValid(certPath string) (bool, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return false, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return false, fmt.Errorf("daemon: no PEM block in %s", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false, err
	}
	return time.Now().Before(cert.NotAfter), nil
}

// generateSelfSignedCert builds a 2048-bit RSA self-signed certificate
// for localhost and writes cert/key PEM files, the same shape as the
// original client's generate_new_selfsigned_certs (subject "localhost",
// SANs for 127.0.0.1/::1 and the filen.local hostnames, one year
// validity).
func generateSelfSignedCert(certPath, keyPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: generate private key: %w", err)}
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: generate serial: %w", err)}
	}

	notBefore := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         "localhost",
			Organization:       []string{"Filen WebDAV Server"},
			OrganizationalUnit: []string{"Local Development"},
			Country:            []string{"US"},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "webdav.local.filen.io", "filen.local", "webdav.local"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: create certificate: %w", err)}
	}

	certOut, err := os.OpenFile(certPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: open cert file: %w", err)}
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: write cert file: %w", err)}
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: open key file: %w", err)}
	}
	defer keyOut.Close()
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: marshal private key: %w", err)}
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}); err != nil {
		return &model.FatalError{Cause: fmt.Errorf("daemon: write key file: %w", err)}
	}
	return nil
}
