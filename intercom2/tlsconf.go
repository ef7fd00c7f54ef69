package intercom2

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Mode selects the Intercom2 transport's security posture.
type Mode int

const (
	// ModePlaintext is mode 1: plain TCP, no authentication at the
	// transport layer.
	ModePlaintext Mode = 1

	// ModeMutualTLS is mode 2: both peers present certificates signed by
	// a shared CA and verify the peer's certificate against it.
	ModeMutualTLS Mode = 2
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// loadCA reads a PEM-encoded CA certificate from path and returns a pool
// containing only it, used to verify the peer's certificate under mode 2.
func loadCA(path string) (*x509.CertPool, error) {
	pemBytes, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// loadKeyPair loads a certificate and its private key from certPath and
// keyPath. If passphrase is non-empty, keyPath is assumed to hold a
// passphrase-protected envelope produced by EncryptPrivateKey rather than a
// raw PEM-encoded key, and is decrypted before being handed to
// tls.X509KeyPair.
func loadKeyPair(certPath, keyPath, passphrase string) (tls.Certificate, error) {
	certPEM, err := ioutil.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading certificate: %w", err)
	}

	keyBytes, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading private key: %w", err)
	}

	if passphrase != "" {
		keyBytes, err = DecryptPrivateKey(keyBytes, passphrase)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("decrypting private key: %w", err)
		}
	}

	return tls.X509KeyPair(certPEM, keyBytes)
}

// EncryptPrivateKey wraps a PEM-encoded private key in a passphrase-derived
// envelope: a random salt is used to scrypt-derive a symmetric key from the
// passphrase, which then seals keyPEM with nacl/secretbox.
func EncryptPrivateKey(keyPEM []byte, passphrase string) ([]byte, error) {
	var salt [saltLen]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}

	key, err := deriveKey(passphrase, salt[:])
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	sealed := secretbox.Seal(nil, keyPEM, &nonce, key)

	out := make([]byte, saltLen+len(nonce)+len(sealed))
	copy(out[0:saltLen], salt[:])
	copy(out[saltLen:saltLen+len(nonce)], nonce[:])
	copy(out[saltLen+len(nonce):], sealed)

	return out, nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func DecryptPrivateKey(envelope []byte, passphrase string) ([]byte, error) {
	if len(envelope) < saltLen+24 {
		return nil, fmt.Errorf("envelope too short")
	}

	salt := envelope[0:saltLen]
	var nonce [24]byte
	copy(nonce[:], envelope[saltLen:saltLen+24])
	sealed := envelope[saltLen+24:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plain, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return nil, fmt.Errorf("wrong passphrase or corrupted key material")
	}
	return plain, nil
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], derived)
	return &key, nil
}

// CertPaths is the on-disk certificate layout for mode 2, rooted at
// <config>/cert/: CA.pem at the root, and server/client key+cert pairs
// under cert/<sitename>/.
type CertPaths struct {
	CADir    string
	SiteName string
}

func (c CertPaths) ca() string         { return c.CADir + "/CA.pem" }
func (c CertPaths) serverKey() string  { return c.CADir + "/" + c.SiteName + "/server.key" }
func (c CertPaths) serverCert() string { return c.CADir + "/" + c.SiteName + "/server.pem" }
func (c CertPaths) clientKey() string  { return c.CADir + "/" + c.SiteName + "/client.key" }
func (c CertPaths) clientCert() string { return c.CADir + "/" + c.SiteName + "/client.pem" }

// ServerTLSConfig builds the tls.Config an Intercom2 listener uses to
// accept inbound mode-2 connections: it presents the server certificate and
// requires (and verifies) the peer's certificate against the shared CA.
func ServerTLSConfig(paths CertPaths, passphrase string) (*tls.Config, error) {
	ca, err := loadCA(paths.ca())
	if err != nil {
		return nil, err
	}

	cert, err := loadKeyPair(paths.serverCert(), paths.serverKey(), passphrase)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    ca,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLSConfig builds the tls.Config used when this peer dials out to a
// remote endpoint under mode 2.
func ClientTLSConfig(paths CertPaths, passphrase string) (*tls.Config, error) {
	ca, err := loadCA(paths.ca())
	if err != nil {
		return nil, err
	}

	cert, err := loadKeyPair(paths.clientCert(), paths.clientKey(), passphrase)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      ca,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
