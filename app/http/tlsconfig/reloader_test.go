// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tlsconfig_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krkn-chaos/krkn-telemetry/app/http/tlsconfig"
)

func writePair(t *testing.T, dir, commonName string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{commonName},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "tls.crt")
	keyFile := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func commonName(t *testing.T, r *tlsconfig.Reloader) string {
	t.Helper()
	cert, err := r.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestUnit_TLSConfig_Reloader_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := tlsconfig.NewReloader(filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key"))
	require.Error(t, err)
}

func TestUnit_TLSConfig_Reloader_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writePair(t, dir, "first.example.com")

	r, err := tlsconfig.NewReloader(certFile, keyFile)
	require.NoError(t, err)
	assert.Equal(t, "first.example.com", commonName(t, r))
	assert.NotNil(t, r.TLSConfig().GetCertificate)

	writePair(t, dir, "second.example.com")
	require.NoError(t, r.Reload())
	assert.Equal(t, "second.example.com", commonName(t, r))

	require.NoError(t, os.WriteFile(certFile, []byte("garbage"), 0o600))
	require.Error(t, r.Reload())
	assert.Equal(t, "second.example.com", commonName(t, r))
}

func TestUnit_TLSConfig_Reloader_Watch(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writePair(t, dir, "first.example.com")
	r, err := tlsconfig.NewReloader(certFile, keyFile)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	reloaded := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		r.Watch(ctx, sigc, func() { reloaded <- struct{}{} })
		close(done)
	}()

	writePair(t, dir, "second.example.com")
	sigc <- syscall.SIGHUP

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("reload not observed")
	}
	assert.Equal(t, "second.example.com", commonName(t, r))

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
