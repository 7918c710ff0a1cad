package fiscal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/sefaz"
	"github.com/pdvlabs/fiscal-api/pkg/logger"
)

const (
	// MaxTentativas limite de transmissões de uma mesma operação antes de
	// marcá-la com erro definitivo.
	MaxTentativas = 10
	// JanelaContingencia prazo legal para transmitir uma NFC-e emitida em
	// contingência off-line. Expirada, a operação vira erro sem ir à SEFAZ.
	JanelaContingencia = 24 * time.Hour
)

// GerenciadorContingencia mantém a máquina de estados Online↔Contingência e a
// fila de documentos aguardando transmissão. Todas as operações são seguras
// para uso concorrente.
type GerenciadorContingencia struct {
	transmissor sefaz.Transmissor
	log         *logger.Logger

	pausaEntreEnvios time.Duration
	intervalo        time.Duration

	emFlush atomic.Bool

	mu                 sync.RWMutex
	ativa              bool
	motivo             string
	ativadaEm          time.Time
	ultimaVerificacao  time.Time
	proximaVerificacao time.Time
	fila               map[string]*entity.OperacaoContingencia // chave de acesso → operação
	ordem              []string                                // ordem de chegada (FIFO)

	cancelaMonitor context.CancelFunc
}

// OpcoesContingencia parametriza o gerenciador.
type OpcoesContingencia struct {
	Transmissor      sefaz.Transmissor
	Log              *logger.Logger
	PausaEntreEnvios time.Duration // pausa entre transmissões da fila (padrão 500 ms)
	Intervalo        time.Duration // intervalo da verificação de saúde (padrão 5 min)
}

// NovoGerenciadorContingencia cria o gerenciador no estado Online.
func NovoGerenciadorContingencia(op OpcoesContingencia) *GerenciadorContingencia {
	if op.PausaEntreEnvios <= 0 {
		op.PausaEntreEnvios = 500 * time.Millisecond
	}
	if op.Intervalo <= 0 {
		op.Intervalo = 5 * time.Minute
	}
	return &GerenciadorContingencia{
		transmissor:      op.Transmissor,
		log:              op.Log,
		pausaEntreEnvios: op.PausaEntreEnvios,
		intervalo:        op.Intervalo,
		fila:             make(map[string]*entity.OperacaoContingencia),
	}
}

// Ativar muda para Contingência registrando o motivo. Idempotente: ativações
// repetidas preservam o motivo e o instante originais.
func (g *GerenciadorContingencia) Ativar(motivo string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ativa {
		return
	}
	g.ativa = true
	g.motivo = motivo
	g.ativadaEm = time.Now()
	if g.log != nil {
		g.log.Warn().Str("motivo", motivo).Msg("contingência ativada")
	}
}

// Desativar volta para Online.
func (g *GerenciadorContingencia) Desativar() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ativa {
		return
	}
	g.ativa = false
	g.motivo = ""
	g.ativadaEm = time.Time{}
	if g.log != nil {
		g.log.Info().Msg("contingência desativada, terminal online")
	}
}

// Ativa informa se o terminal está em contingência.
func (g *GerenciadorContingencia) Ativa() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ativa
}

// Status devolve uma fotografia do estado para o PDV e o back-office.
func (g *GerenciadorContingencia) Status() entity.StatusContingencia {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pendentes := 0
	for _, op := range g.fila {
		if op.Status == entity.OperacaoPendente {
			pendentes++
		}
	}
	return entity.StatusContingencia{
		Ativa:              g.ativa,
		Motivo:             g.motivo,
		AtivadaEm:          g.ativadaEm,
		OperacoesPendentes: pendentes,
		UltimaVerificacao:  g.ultimaVerificacao,
		ProximaVerificacao: g.proximaVerificacao,
	}
}

// Enfileirar adiciona um documento assinado à fila. A chave de acesso é o
// identificador natural: enfileirar a mesma chave duas vezes é erro.
func (g *GerenciadorContingencia) Enfileirar(chave, xmlDoc, xmlAssinado, motivo string) (*entity.OperacaoContingencia, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, existe := g.fila[chave]; existe {
		return nil, fmt.Errorf("%w: chave %s já está na fila de contingência", domain.ErrValidacao, chave)
	}
	op := &entity.OperacaoContingencia{
		ID:          uuid.NewString(),
		ChaveAcesso: chave,
		XML:         xmlDoc,
		XMLAssinado: xmlAssinado,
		CriadaEm:    time.Now(),
		Status:      entity.OperacaoPendente,
		Motivo:      motivo,
	}
	g.fila[chave] = op
	g.ordem = append(g.ordem, chave)
	if g.log != nil {
		g.log.Info().Str("chave", chave).Str("motivo", motivo).Msg("documento enfileirado em contingência")
	}
	return op, nil
}

// OperacoesPendentes devolve cópias das operações na ordem de chegada.
func (g *GerenciadorContingencia) OperacoesPendentes() []*entity.OperacaoContingencia {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*entity.OperacaoContingencia, 0, len(g.ordem))
	for _, chave := range g.ordem {
		if op, ok := g.fila[chave]; ok {
			copia := *op
			out = append(out, &copia)
		}
	}
	return out
}

// CancelarOperacao marca uma operação pendente como cancelada e a remove da fila.
func (g *GerenciadorContingencia) CancelarOperacao(chave string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.fila[chave]
	if !ok {
		return fmt.Errorf("%w: operação %s não está na fila", domain.ErrNaoEncontrado, chave)
	}
	if op.Status != entity.OperacaoPendente {
		return fmt.Errorf("%w: operação %s não está pendente (%s)", domain.ErrValidacao, chave, op.Status)
	}
	op.Status = entity.OperacaoCancelada
	g.removerLocked(chave)
	return nil
}

// TransmitirPendentes tenta transmitir a fila em ordem de chegada. Devolve os
// contadores de transmitidas e com erro definitivo. Uma falha de transporte
// interrompe a rodada (a SEFAZ continua inacessível); tanto falhas de
// transporte quanto rejeições contam tentativa e viram erro definitivo após
// MaxTentativas. Operações fora da janela de 24 h viram erro sem ir à
// autoridade. Reentrância é bloqueada.
func (g *GerenciadorContingencia) TransmitirPendentes(ctx context.Context) (transmitidas, comErro int, err error) {
	if !g.emFlush.CompareAndSwap(false, true) {
		return 0, 0, fmt.Errorf("transmissão da fila já em andamento")
	}
	defer g.emFlush.Store(false)

	for i, op := range g.OperacoesPendentes() {
		if op.Status != entity.OperacaoPendente {
			continue
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return transmitidas, comErro, ctx.Err()
			case <-time.After(g.pausaEntreEnvios):
			}
		}

		if time.Since(op.CriadaEm) > JanelaContingencia {
			g.finalizar(op.ChaveAcesso, entity.OperacaoErro, "janela de 24h para transmissão expirada")
			comErro++
			continue
		}

		resp, terr := g.transmissor.Autorizar(ctx, []byte(op.XMLAssinado), op.ChaveAcesso)
		if terr != nil {
			// transporte indisponível: registra a tentativa e interrompe a rodada
			restantes := g.registrarTentativa(op.ChaveAcesso, terr.Error())
			if restantes >= MaxTentativas {
				g.finalizar(op.ChaveAcesso, entity.OperacaoErro,
					fmt.Sprintf("limite de %d tentativas atingido: %s", MaxTentativas, terr.Error()))
				comErro++
			}
			return transmitidas, comErro, terr
		}
		if resp.Sucesso {
			g.finalizar(op.ChaveAcesso, entity.OperacaoTransmitida, "")
			transmitidas++
			continue
		}
		restantes := g.registrarTentativa(op.ChaveAcesso,
			fmt.Sprintf("rejeição [%s]: %s", resp.CStat, resp.XMotivo))
		if restantes >= MaxTentativas {
			g.finalizar(op.ChaveAcesso, entity.OperacaoErro,
				fmt.Sprintf("limite de %d tentativas atingido: [%s] %s", MaxTentativas, resp.CStat, resp.XMotivo))
			comErro++
		}
	}

	// fila vazia de pendentes: o terminal pode voltar ao normal
	if g.Status().OperacoesPendentes == 0 {
		g.Desativar()
	}
	return transmitidas, comErro, nil
}

// registrarTentativa incrementa o contador e devolve o total de tentativas.
func (g *GerenciadorContingencia) registrarTentativa(chave, erro string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.fila[chave]
	if !ok {
		return 0
	}
	op.Tentativas++
	op.UltimaTentativa = time.Now()
	op.Erro = erro
	return op.Tentativas
}

// finalizar marca o estado terminal e expurga a operação da fila.
func (g *GerenciadorContingencia) finalizar(chave string, status entity.StatusOperacao, erro string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.fila[chave]
	if !ok {
		return
	}
	op.Status = status
	if erro != "" {
		op.Erro = erro
	}
	if g.log != nil {
		g.log.Info().Str("chave", chave).Str("status", string(status)).Str("erro", erro).
			Msg("operação de contingência finalizada")
	}
	g.removerLocked(chave)
}

func (g *GerenciadorContingencia) removerLocked(chave string) {
	delete(g.fila, chave)
	for i, c := range g.ordem {
		if c == chave {
			g.ordem = append(g.ordem[:i], g.ordem[i+1:]...)
			break
		}
	}
}

// IniciarMonitoramento lança a verificação periódica de saúde. Online com a
// SEFAZ fora do ar, entra em contingência antes da próxima venda; em
// contingência com a SEFAZ de volta, transmite a fila. Parar (ou o
// cancelamento do ctx) encerra o laço.
func (g *GerenciadorContingencia) IniciarMonitoramento(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.cancelaMonitor = cancel
	g.proximaVerificacao = time.Now().Add(g.intervalo)
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(g.intervalo)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.verificarSaude(ctx)
			}
		}
	}()
}

// Parar encerra o monitoramento de saúde, se ativo.
func (g *GerenciadorContingencia) Parar() {
	g.mu.Lock()
	cancel := g.cancelaMonitor
	g.cancelaMonitor = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *GerenciadorContingencia) verificarSaude(ctx context.Context) {
	agora := time.Now()
	g.mu.Lock()
	g.ultimaVerificacao = agora
	g.proximaVerificacao = agora.Add(g.intervalo)
	ativa := g.ativa
	g.mu.Unlock()

	resp, err := g.transmissor.StatusServico(ctx)
	online := err == nil && resp.Online

	if !ativa {
		if !online {
			// SEFAZ caiu com o terminal online: contingência antes da próxima venda
			g.Ativar(entity.MotivoFalhaStatusServico)
		}
		return
	}

	if !online {
		if g.log != nil {
			g.log.Debug().Err(err).Msg("SEFAZ segue indisponível, mantendo contingência")
		}
		return
	}
	if g.log != nil {
		g.log.Info().Dur("tempo_resposta", resp.TempoResposta).Msg("SEFAZ de volta, transmitindo fila")
	}
	if _, _, err := g.TransmitirPendentes(ctx); err != nil && g.log != nil {
		g.log.Warn().Err(err).Msg("transmissão da fila interrompida")
	}
}

// Exportar devolve um snapshot da fila e do estado para persistência.
func (g *GerenciadorContingencia) Exportar() *entity.SnapshotContingencia {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ops := make([]*entity.OperacaoContingencia, 0, len(g.ordem))
	for _, chave := range g.ordem {
		if op, ok := g.fila[chave]; ok {
			copia := *op
			ops = append(ops, &copia)
		}
	}
	return &entity.SnapshotContingencia{
		Status: entity.StatusContingencia{
			Ativa:              g.ativa,
			Motivo:             g.motivo,
			AtivadaEm:          g.ativadaEm,
			OperacoesPendentes: len(ops),
			UltimaVerificacao:  g.ultimaVerificacao,
			ProximaVerificacao: g.proximaVerificacao,
		},
		Operacoes: ops,
	}
}

// Importar restaura um snapshot persistido, substituindo a fila atual.
func (g *GerenciadorContingencia) Importar(snap *entity.SnapshotContingencia) {
	if snap == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ativa = snap.Status.Ativa
	g.motivo = snap.Status.Motivo
	g.ativadaEm = snap.Status.AtivadaEm
	g.fila = make(map[string]*entity.OperacaoContingencia, len(snap.Operacoes))
	g.ordem = g.ordem[:0]
	for _, op := range snap.Operacoes {
		if op == nil || op.Status != entity.OperacaoPendente {
			continue
		}
		copia := *op
		g.fila[op.ChaveAcesso] = &copia
		g.ordem = append(g.ordem, op.ChaveAcesso)
	}
}
