package nfce

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParamsQRCode contém os dados do QR Code da NFC-e na ordem exigida pelo layout:
// chave | tpAmb | idCSC | valor total | hash.
type ParamsQRCode struct {
	ChaveAcesso string          // chave de acesso de 44 dígitos
	TpAmb       string          // "1" = produção, "2" = homologação
	IDCSC       string          // identificador do CSC cadastrado na SEFAZ
	CSC         string          // Código de Segurança do Contribuinte (segredo, nunca vai no payload)
	ValorTotal  decimal.Decimal // vNF
	URLConsulta string          // URL de consulta pública da SEFAZ
}

// MontarQRCode gera o conteúdo do QR Code de consulta da NFC-e.
// O hash SHA-1 cobre os campos concatenados por pipe mais o CSC; o CSC em si
// nunca aparece no payload.
func MontarQRCode(p ParamsQRCode) (string, error) {
	if err := ValidarChave(p.ChaveAcesso); err != nil {
		return "", err
	}
	if p.TpAmb != "1" && p.TpAmb != "2" {
		return "", fmt.Errorf("nfce: tpAmb deve ser 1 ou 2, recebido %q", p.TpAmb)
	}
	if p.IDCSC == "" || p.CSC == "" {
		return "", fmt.Errorf("nfce: idCSC e CSC são obrigatórios para o QR Code")
	}
	if p.URLConsulta == "" {
		return "", fmt.Errorf("nfce: URL de consulta é obrigatória")
	}

	campos := strings.Join([]string{
		p.ChaveAcesso,
		p.TpAmb,
		p.IDCSC,
		FormatarValor(p.ValorTotal),
	}, "|")

	h := sha1.Sum([]byte(campos + p.CSC))
	hash := strings.ToUpper(hex.EncodeToString(h[:]))

	return p.URLConsulta + "?p=" + campos + "|" + hash, nil
}

// FormatarValor formata montantes para o padrão SEFAZ: ponto decimal, duas
// casas, sem separador de milhar (ex: 1500.00).
func FormatarValor(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
