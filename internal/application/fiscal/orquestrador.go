package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/pdvlabs/fiscal-api/internal/application/dto"
	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/sefaz"
	"github.com/pdvlabs/fiscal-api/pkg/config"
	"github.com/pdvlabs/fiscal-api/pkg/logger"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// cStat da SEFAZ quando o lote ainda está em processamento na consulta de recibo.
const cStatLoteEmProcessamento = "105"

// EmissorFiscal orquestra o pipeline de emissão: montagem → assinatura →
// QR Code → transmissão (ou fila de contingência). Validação e assinatura
// abortam a emissão; falhas de transporte e rejeições na transmissão são
// absorvidas pela contingência e a venda não é bloqueada.
type EmissorFiscal struct {
	cfg          config.FiscalConfig
	montador     *MontadorDocumento
	assinador    nfce.Assinador
	transmissor  sefaz.Transmissor
	contingencia *GerenciadorContingencia
	repo         RepositorioDocumentos // opcional (nil = sem auditoria persistida)
	log          *logger.Logger
}

// OpcoesEmissor dependências do orquestrador.
type OpcoesEmissor struct {
	Config       config.FiscalConfig
	Montador     *MontadorDocumento
	Assinador    nfce.Assinador
	Transmissor  sefaz.Transmissor
	Contingencia *GerenciadorContingencia
	Repositorio  RepositorioDocumentos
	Log          *logger.Logger
}

// NovoEmissorFiscal monta o orquestrador. Com ContingenciaForcada na
// configuração, o terminal já nasce em contingência.
func NovoEmissorFiscal(op OpcoesEmissor) *EmissorFiscal {
	e := &EmissorFiscal{
		cfg:          op.Config,
		montador:     op.Montador,
		assinador:    op.Assinador,
		transmissor:  op.Transmissor,
		contingencia: op.Contingencia,
		repo:         op.Repositorio,
		log:          op.Log,
	}
	if op.Config.ContingenciaForcada {
		e.contingencia.Ativar(entity.MotivoForcada)
	}
	return e
}

// Contingencia expõe o gerenciador para as interfaces de inspeção.
func (e *EmissorFiscal) Contingencia() *GerenciadorContingencia {
	return e.contingencia
}

// Emitir executa a emissão completa de uma NFC-e para a venda informada.
func (e *EmissorFiscal) Emitir(ctx context.Context, req *dto.EmitirRequest) (*dto.EmissaoResponse, error) {
	tpEmis := nfce.TpEmisNormal
	if e.contingencia.Ativa() {
		tpEmis = nfce.TpEmisContingencia
	}

	nota, xmlDoc, err := e.montador.Montar(ctx, req, tpEmis)
	if err != nil {
		return nil, err
	}
	assinado, err := e.assinador.Assinar(xmlDoc, "NFe"+nota.ChaveAcesso)
	if err != nil {
		return nil, err
	}
	qr, err := nfce.MontarQRCode(nfce.ParamsQRCode{
		ChaveAcesso: nota.ChaveAcesso,
		TpAmb:       e.cfg.Ambiente,
		IDCSC:       e.cfg.IDCSC,
		CSC:         e.cfg.CSC,
		ValorTotal:  nota.Total.VNF,
		URLConsulta: e.cfg.URLConsulta,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}

	resp := &dto.EmissaoResponse{
		ChaveAcesso: nota.ChaveAcesso,
		Serie:       nota.Ide.Serie,
		Numero:      nota.Ide.Numero,
		QRCode:      qr,
		ValorTotal:  nota.Total.VNF,
		EmitidaEm:   nota.Ide.DhEmi,
	}

	if tpEmis == nfce.TpEmisContingencia {
		motivo := e.contingencia.Status().Motivo
		e.enfileirar(nota.ChaveAcesso, xmlDoc, assinado, motivo)
		resp.Status = entity.NotaStatusContingencia
		resp.Contingencia = true
	} else {
		e.transmitir(ctx, nota.ChaveAcesso, xmlDoc, assinado, resp)
	}

	e.salvarRegistro(ctx, nota, resp, assinado)
	return resp, nil
}

// transmitir tenta a autorização online e faz o follow-up do recibo. Qualquer
// falha de transporte ou rejeição ativa a contingência e enfileira o documento.
func (e *EmissorFiscal) transmitir(ctx context.Context, chave string, xmlDoc, assinado []byte, resp *dto.EmissaoResponse) {
	sr, err := e.transmissor.Autorizar(ctx, assinado, chave)
	if err != nil {
		e.absorver(chave, xmlDoc, assinado, entity.MotivoFalhaAutorizacao, resp)
		if e.log != nil {
			e.log.Warn().Err(err).Str("chave", chave).Msg("autorização falhou, documento em contingência")
		}
		return
	}
	if !sr.Sucesso {
		e.absorver(chave, xmlDoc, assinado,
			fmt.Sprintf("%s: [%s] %s", entity.MotivoFalhaAutorizacao, sr.CStat, sr.XMotivo), resp)
		return
	}

	resp.Status = entity.NotaStatusLoteRecebido
	resp.Recibo = sr.Recibo

	rr, err := e.transmissor.ConsultarRecibo(ctx, sr.Recibo)
	if err != nil || rr.CStat == cStatLoteEmProcessamento {
		// lote aceito; a autorização definitiva fica para a consulta posterior
		return
	}
	if rr.Sucesso {
		resp.Status = entity.NotaStatusAutorizada
		resp.Protocolo = rr.Protocolo
		return
	}
	e.absorver(chave, xmlDoc, assinado,
		fmt.Sprintf("%s: [%s] %s", entity.MotivoFalhaAutorizacao, rr.CStat, rr.XMotivo), resp)
}

func (e *EmissorFiscal) absorver(chave string, xmlDoc, assinado []byte, motivo string, resp *dto.EmissaoResponse) {
	e.contingencia.Ativar(entity.MotivoFalhaAutorizacao)
	e.enfileirar(chave, xmlDoc, assinado, motivo)
	resp.Status = entity.NotaStatusContingencia
	resp.Contingencia = true
	resp.Recibo = ""
	resp.Protocolo = ""
}

func (e *EmissorFiscal) enfileirar(chave string, xmlDoc, assinado []byte, motivo string) {
	if _, err := e.contingencia.Enfileirar(chave, string(xmlDoc), string(assinado), motivo); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("chave", chave).Msg("falha ao enfileirar em contingência")
	}
}

func (e *EmissorFiscal) salvarRegistro(ctx context.Context, nota *entity.NotaFiscal, resp *dto.EmissaoResponse, assinado []byte) {
	if e.repo == nil {
		return
	}
	registro := &entity.NotaEmitida{
		ID:           nota.ID,
		ChaveAcesso:  nota.ChaveAcesso,
		Serie:        nota.Ide.Serie,
		Numero:       nota.Ide.Numero,
		ValorTotal:   nota.Total.VNF,
		Status:       resp.Status,
		Protocolo:    resp.Protocolo,
		Recibo:       resp.Recibo,
		QRCode:       resp.QRCode,
		XMLAssinado:  string(assinado),
		EmitidaEm:    nota.Ide.DhEmi,
		AtualizadaEm: time.Now(),
	}
	if err := e.repo.Salvar(ctx, registro); err != nil && e.log != nil {
		e.log.Error().Err(err).Str("chave", nota.ChaveAcesso).Msg("falha ao persistir registro da emissão")
	}
}

// Cancelar envia o evento de cancelamento de uma NFC-e autorizada. Ao
// contrário da emissão, não há contingência: rejeições e falhas sobem.
func (e *EmissorFiscal) Cancelar(ctx context.Context, req *dto.CancelarRequest) (*dto.EventoResponse, error) {
	if err := nfce.ValidarChave(req.ChaveAcesso); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}
	xmlEvento, refID, err := sefaz.MontarEvento(sefaz.DadosEvento{
		ChaveAcesso:   req.ChaveAcesso,
		TpEvento:      sefaz.TpEventoCancelamento,
		NSeqEvento:    1,
		COrgao:        e.cfg.CUF,
		TpAmb:         e.cfg.Ambiente,
		CNPJAutor:     e.cfg.Emitente.CNPJ,
		DhEvento:      time.Now(),
		Protocolo:     req.Protocolo,
		Justificativa: req.Justificativa,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}
	assinado, err := e.assinador.Assinar(xmlEvento, refID)
	if err != nil {
		return nil, err
	}

	resp, err := e.transmissor.EnviarEvento(ctx, assinado)
	if err != nil {
		return nil, err
	}
	if !resp.Sucesso {
		return nil, &domain.RejeicaoSefaz{CStat: resp.CStat, XMotivo: resp.XMotivo}
	}

	if e.repo != nil {
		if err := e.repo.AtualizarStatus(ctx, req.ChaveAcesso, entity.NotaStatusCancelada, resp.Protocolo); err != nil && e.log != nil {
			e.log.Error().Err(err).Str("chave", req.ChaveAcesso).Msg("falha ao atualizar status do cancelamento")
		}
	}
	return &dto.EventoResponse{
		ChaveAcesso: req.ChaveAcesso,
		CStat:       resp.CStat,
		XMotivo:     resp.XMotivo,
		Protocolo:   resp.Protocolo,
	}, nil
}

// Inutilizar homologa a inutilização de uma faixa de numeração nunca usada
// (buracos deixados por emissões que falharam). Sem contingência: erros sobem.
func (e *EmissorFiscal) Inutilizar(ctx context.Context, req *dto.InutilizarRequest) (*dto.EventoResponse, error) {
	xmlInut, refID, err := sefaz.MontarInutilizacao(sefaz.DadosInutilizacao{
		CUF:           e.cfg.CUF,
		Ano:           time.Now().Format("06"),
		CNPJ:          e.cfg.Emitente.CNPJ,
		Modelo:        nfce.ModeloNFCe,
		Serie:         e.cfg.Serie,
		NumeroInicial: req.NumeroInicial,
		NumeroFinal:   req.NumeroFinal,
		TpAmb:         e.cfg.Ambiente,
		Justificativa: req.Justificativa,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}
	assinado, err := e.assinador.Assinar(xmlInut, refID)
	if err != nil {
		return nil, err
	}

	resp, err := e.transmissor.Inutilizar(ctx, assinado)
	if err != nil {
		return nil, err
	}
	if !resp.Sucesso {
		return nil, &domain.RejeicaoSefaz{CStat: resp.CStat, XMotivo: resp.XMotivo}
	}
	return &dto.EventoResponse{
		CStat:     resp.CStat,
		XMotivo:   resp.XMotivo,
		Protocolo: resp.Protocolo,
	}, nil
}

// ConsultarChave consulta a situação atual de um documento na SEFAZ.
func (e *EmissorFiscal) ConsultarChave(ctx context.Context, chave string) (*dto.ConsultaResponse, error) {
	if err := nfce.ValidarChave(chave); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidacao, err)
	}
	resp, err := e.transmissor.ConsultarChave(ctx, chave)
	if err != nil {
		return nil, err
	}
	return &dto.ConsultaResponse{
		ChaveAcesso: chave,
		CStat:       resp.CStat,
		XMotivo:     resp.XMotivo,
		Protocolo:   resp.Protocolo,
	}, nil
}

// ConsultarStatus consulta a disponibilidade do autorizador. Falha de
// transporte não é erro aqui: vira Online=false com a causa.
func (e *EmissorFiscal) ConsultarStatus(ctx context.Context) *dto.StatusServicoResponse {
	resp, err := e.transmissor.StatusServico(ctx)
	if err != nil {
		return &dto.StatusServicoResponse{Online: false, Erro: err.Error()}
	}
	return &dto.StatusServicoResponse{
		Online:          resp.Online,
		CStat:           resp.CStat,
		XMotivo:         resp.XMotivo,
		TempoRespostaMs: resp.TempoResposta.Milliseconds(),
	}
}

// StatusCertificado devolve os dados do certificado carregado e o alerta de
// proximidade do vencimento.
func (e *EmissorFiscal) StatusCertificado() (*dto.CertificadoResponse, error) {
	info, err := e.assinador.Validar()
	if err != nil {
		return nil, err
	}
	vcto, err := e.assinador.VerificarVencimento(e.cfg.DiasAlertaCert)
	if err != nil {
		return nil, err
	}
	return &dto.CertificadoResponse{
		Titular:           info.Titular,
		Emissor:           info.Emissor,
		NumeroSerie:       info.NumeroSerie,
		ValidoDesde:       info.ValidoDesde,
		ValidoAte:         info.ValidoAte,
		DiasRestantes:     vcto.DiasRestantes,
		ProximoVencimento: vcto.ProximoVencimento,
	}, nil
}

// Destruir encerra o monitoramento e descarta o material criptográfico.
func (e *EmissorFiscal) Destruir() {
	e.contingencia.Parar()
	e.assinador.Limpar()
}
