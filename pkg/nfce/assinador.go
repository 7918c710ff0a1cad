package nfce

import "time"

// MaterialCertificado referencia o certificado digital A1 do emitente.
// Aceita .pfx/.p12 (com senha) ou par PEM (certificado + chave).
type MaterialCertificado struct {
	Caminho      string // arquivo .pfx/.p12 ou certificado .pem
	CaminhoChave string // chave privada .pem separada (vazio se combinada ou .p12)
	Senha        string // senha do .p12
}

// InfoCertificado resume o certificado carregado para consulta pelo PDV.
type InfoCertificado struct {
	Titular     string
	Emissor     string
	NumeroSerie string
	ValidoDesde time.Time
	ValidoAte   time.Time
}

// StatusVencimento indica a proximidade do vencimento do certificado.
type StatusVencimento struct {
	ProximoVencimento bool // true quando faltam <= diasAlerta para vencer
	DiasRestantes     int  // negativo se já vencido
}

// Assinador define o contrato de assinatura de documentos fiscais. A
// implementação de produção faz a carga X.509/PKCS#12 e a assinatura
// XML-DSig; em testes injeta-se um fake.
type Assinador interface {
	// CarregarCertificado carrega e valida o certificado do emitente.
	CarregarCertificado(material MaterialCertificado) (*InfoCertificado, error)
	// Assinar assina o XML referenciando o elemento de id refID (ex: "NFe"+chave).
	// Falha se nenhum certificado estiver carregado.
	Assinar(xmlDoc []byte, refID string) ([]byte, error)
	// Validar retorna os dados do certificado carregado ou erro se ausente/vencido.
	Validar() (*InfoCertificado, error)
	// VerificarVencimento é função pura do certificado carregado e do relógio;
	// nunca muda estado.
	VerificarVencimento(diasAlerta int) (StatusVencimento, error)
	// Limpar descarta o certificado carregado.
	Limpar()
}
