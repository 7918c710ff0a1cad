// Carga do certificado A1 a partir de .p12 (PKCS#12) ou par PEM.

package signer

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"

	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// CarregarDeP12 carrega certificado e chave privada de um arquivo .p12/.pfx.
// A senha pode ser vazia se o arquivo não estiver protegido.
func CarregarDeP12(caminho, senha string) (tls.Certificate, error) {
	dados, err := os.ReadFile(caminho)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("ler p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(dados, senha)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devolve um único certificado; para o A1 basta a folha.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// CarregarDePEM carrega certificado e chave de arquivos PEM (separados ou
// combinados no mesmo arquivo).
func CarregarDePEM(caminhoCert, caminhoChave string) (tls.Certificate, error) {
	if caminhoChave == "" {
		caminhoChave = caminhoCert
	}
	cert, err := tls.LoadX509KeyPair(caminhoCert, caminhoChave)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("carregar PEM: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if folha, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = folha
		}
	}
	return cert, nil
}

// extrairInfo resume o certificado X.509 para o contrato nfce.InfoCertificado.
func extrairInfo(cert *x509.Certificate) *nfce.InfoCertificado {
	return &nfce.InfoCertificado{
		Titular:     cert.Subject.CommonName,
		Emissor:     cert.Issuer.CommonName,
		NumeroSerie: cert.SerialNumber.Text(16),
		ValidoDesde: cert.NotBefore,
		ValidoAte:   cert.NotAfter,
	}
}
