package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pdvlabs/fiscal-api/internal/application/dto"
	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
)

// ContingenciaHandler inspeção e administração da fila de contingência.
type ContingenciaHandler struct {
	gerenciador *fiscal.GerenciadorContingencia
}

// NewContingenciaHandler constrói o handler.
func NewContingenciaHandler(g *fiscal.GerenciadorContingencia) *ContingenciaHandler {
	return &ContingenciaHandler{gerenciador: g}
}

// Status devolve o estado atual da contingência.
// GET /api/fiscal/contingencia
func (h *ContingenciaHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.gerenciador.Status())
}

// Operacoes lista as operações na fila, na ordem de chegada.
// GET /api/fiscal/contingencia/operacoes
func (h *ContingenciaHandler) Operacoes(c *fiber.Ctx) error {
	return c.JSON(h.gerenciador.OperacoesPendentes())
}

// Transmitir dispara a transmissão manual da fila (sem esperar o monitor).
// POST /api/fiscal/contingencia/transmitir
func (h *ContingenciaHandler) Transmitir(c *fiber.Ctx) error {
	transmitidas, comErro, err := h.gerenciador.TransmitirPendentes(c.Context())
	resp := dto.FlushResponse{
		Transmitidas: transmitidas,
		ComErro:      comErro,
		Restantes:    h.gerenciador.Status().OperacoesPendentes,
	}
	if err != nil {
		// rodada interrompida: devolve o progresso parcial com a causa
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"resultado": resp,
			"erro":      err.Error(),
		})
	}
	return c.JSON(resp)
}

// Ativar força a entrada em contingência (manutenção programada da SEFAZ).
// POST /api/fiscal/contingencia/ativar
func (h *ContingenciaHandler) Ativar(c *fiber.Ctx) error {
	h.gerenciador.Ativar(entity.MotivoForcada)
	return c.JSON(h.gerenciador.Status())
}

// Desativar devolve o terminal para o modo online.
// POST /api/fiscal/contingencia/desativar
func (h *ContingenciaHandler) Desativar(c *fiber.Ctx) error {
	h.gerenciador.Desativar()
	return c.JSON(h.gerenciador.Status())
}

// CancelarOperacao descarta uma operação pendente da fila.
// DELETE /api/fiscal/contingencia/operacoes/:chave
func (h *ContingenciaHandler) CancelarOperacao(c *fiber.Ctx) error {
	if err := h.gerenciador.CancelarOperacao(c.Params("chave")); err != nil {
		return responderErro(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
