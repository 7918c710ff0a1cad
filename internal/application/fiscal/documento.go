package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pdvlabs/fiscal-api/internal/application/dto"
	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/sefaz"
	"github.com/pdvlabs/fiscal-api/pkg/config"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

const natOpPadrao = "VENDA AO CONSUMIDOR"

// MontadorDocumento valida a venda, consome a numeração e produz a NotaFiscal
// canônica com o XML do layout 4.00 (ainda sem assinatura).
type MontadorDocumento struct {
	emitente  entity.Emitente
	cuf       string
	serie     string
	tpAmb     string
	numeracao SequenciaNumeracao
	construtor *sefaz.ConstrutorXML
}

// NovoMontadorDocumento monta o serviço a partir da configuração do emitente.
func NovoMontadorDocumento(cfg config.FiscalConfig, numeracao SequenciaNumeracao) *MontadorDocumento {
	e := cfg.Emitente
	return &MontadorDocumento{
		emitente: entity.Emitente{
			CNPJ:         e.CNPJ,
			RazaoSocial:  e.RazaoSocial,
			NomeFantasia: e.NomeFantasia,
			IE:           e.IE,
			CRT:          e.CRT,
			Logradouro:   e.Logradouro,
			NumeroEnd:    e.NumeroEnd,
			Bairro:       e.Bairro,
			CodMunicipio: e.CodMunicipio,
			Municipio:    e.Municipio,
			UF:           e.UF,
			CEP:          e.CEP,
		},
		cuf:       cfg.CUF,
		serie:     cfg.Serie,
		tpAmb:     cfg.Ambiente,
		numeracao: numeracao,
		construtor: sefaz.NovoConstrutorXML(),
	}
}

// Montar valida a venda e devolve a nota canônica com o XML sem assinatura.
// A numeração é consumida mesmo que uma etapa posterior da emissão falhe;
// buracos são resolvidos depois por inutilização.
func (m *MontadorDocumento) Montar(ctx context.Context, req *dto.EmitirRequest, tpEmis string) (*entity.NotaFiscal, []byte, error) {
	itens, total, err := m.validarItens(req.Itens)
	if err != nil {
		return nil, nil, err
	}
	pag, err := m.validarPagamento(req.Pagamento, total.VNF)
	if err != nil {
		return nil, nil, err
	}
	dest, err := validarDestinatario(req.DestCPFCNPJ)
	if err != nil {
		return nil, nil, err
	}

	numero, err := m.numeracao.Proximo(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("obter próximo número: %w", err)
	}

	agora := time.Now()
	cnf := nfce.GerarCNF()
	chave, err := nfce.MontarChave(nfce.CamposChave{
		CUF:    m.cuf,
		AAMM:   agora.Format("0601"),
		CNPJ:   m.emitente.CNPJ,
		Modelo: nfce.ModeloNFCe,
		Serie:  m.serie,
		Numero: numero,
		TpEmis: tpEmis,
		CNF:    cnf,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}

	natOp := req.NatOp
	if natOp == "" {
		natOp = natOpPadrao
	}
	nota := &entity.NotaFiscal{
		ID:          uuid.NewString(),
		ChaveAcesso: chave,
		Ide: entity.Identificacao{
			CUF:    m.cuf,
			CNF:    cnf,
			NatOp:  natOp,
			Modelo: nfce.ModeloNFCe,
			Serie:  m.serie,
			Numero: numero,
			DhEmi:  agora,
			TpEmis: tpEmis,
			TpAmb:  m.tpAmb,
		},
		Emit:        m.emitente,
		DestCPFCNPJ: dest,
		Itens:       itens,
		Total:       total,
		Pag:         pag,
	}

	xmlDoc, err := m.construtor.Montar(nota)
	if err != nil {
		return nil, nil, fmt.Errorf("serializar nota: %w", err)
	}
	return nota, xmlDoc, nil
}

func (m *MontadorDocumento) validarItens(entrada []dto.ItemVenda) ([]entity.ItemNota, entity.Totais, error) {
	if len(entrada) == 0 {
		return nil, entity.Totais{}, fmt.Errorf("%w: a venda precisa de ao menos um item", domain.ErrValidacao)
	}

	itens := make([]entity.ItemNota, 0, len(entrada))
	vProd := decimal.Zero
	for i, item := range entrada {
		if item.Codigo == "" || item.Descricao == "" {
			return nil, entity.Totais{}, fmt.Errorf("%w: item %d sem código ou descrição", domain.ErrValidacao, i+1)
		}
		if !item.Quantidade.IsPositive() {
			return nil, entity.Totais{}, fmt.Errorf("%w: item %d com quantidade não positiva", domain.ErrValidacao, i+1)
		}
		if !item.ValorUnitario.IsPositive() {
			return nil, entity.Totais{}, fmt.Errorf("%w: item %d com valor unitário não positivo", domain.ErrValidacao, i+1)
		}
		cfop := item.CFOP
		if cfop == "" {
			cfop = nfce.CFOPVendaDentroEstado
		}
		csosn := item.CSOSN
		if csosn == "" {
			csosn = nfce.CSOSNTributadaSemCredito
		}
		valorTotal := item.Quantidade.Mul(item.ValorUnitario).Round(2)
		vProd = vProd.Add(valorTotal)
		itens = append(itens, entity.ItemNota{
			Codigo:        item.Codigo,
			Descricao:     item.Descricao,
			Quantidade:    item.Quantidade,
			ValorUnitario: item.ValorUnitario,
			ValorTotal:    valorTotal,
			CFOP:          cfop,
			CSOSN:         csosn,
			CSTPis:        nfce.CSTPisCofinsOutrasOperacoes,
			CSTCofins:     nfce.CSTPisCofinsOutrasOperacoes,
		})
	}
	return itens, entity.Totais{VProd: vProd, VNF: vProd}, nil
}

func (m *MontadorDocumento) validarPagamento(p dto.PagamentoVenda, vNF decimal.Decimal) (entity.Pagamento, error) {
	forma := nfce.CodigoFormaPagamento(p.Forma)
	if forma == "" {
		return entity.Pagamento{}, fmt.Errorf("%w: forma de pagamento desconhecida %q", domain.ErrValidacao, p.Forma)
	}
	if p.ValorPago.LessThan(vNF) {
		return entity.Pagamento{}, fmt.Errorf("%w: valor pago %s menor que o total %s",
			domain.ErrValidacao, nfce.FormatarValor(p.ValorPago), nfce.FormatarValor(vNF))
	}
	return entity.Pagamento{
		Forma: forma,
		VPag:  p.ValorPago,
		Troco: p.ValorPago.Sub(vNF),
	}, nil
}

func validarDestinatario(doc string) (string, error) {
	digitos := nfce.SomenteDigitos(doc)
	switch len(digitos) {
	case 0:
		return "", nil // consumidor não identificado
	case 11:
		return digitos, nil
	case 14:
		if err := nfce.ValidarCNPJ(digitos); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrValidacao, err)
		}
		return digitos, nil
	default:
		return "", fmt.Errorf("%w: documento do consumidor deve ser CPF (11) ou CNPJ (14 dígitos)", domain.ErrValidacao)
	}
}
