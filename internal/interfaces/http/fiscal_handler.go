package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pdvlabs/fiscal-api/internal/application/dto"
	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
	"github.com/pdvlabs/fiscal-api/internal/domain"
)

// FiscalHandler trata as operações de emissão do terminal (protegido).
type FiscalHandler struct {
	emissor *fiscal.EmissorFiscal
	notas   fiscal.RepositorioDocumentos // opcional
}

// NewFiscalHandler constrói o handler. notas pode ser nil (sem persistência).
func NewFiscalHandler(emissor *fiscal.EmissorFiscal, notas fiscal.RepositorioDocumentos) *FiscalHandler {
	return &FiscalHandler{emissor: emissor, notas: notas}
}

// Emitir emite a NFC-e de uma venda fechada.
// POST /api/fiscal/notas
func (h *FiscalHandler) Emitir(c *fiber.Ctx) error {
	var in dto.EmitirRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	resp, err := h.emissor.Emitir(c.Context(), &in)
	if err != nil {
		return responderErro(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Cancelar envia o evento de cancelamento de uma nota autorizada.
// POST /api/fiscal/notas/cancelamento
func (h *FiscalHandler) Cancelar(c *fiber.Ctx) error {
	var in dto.CancelarRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	resp, err := h.emissor.Cancelar(c.Context(), &in)
	if err != nil {
		return responderErro(c, err)
	}
	return c.JSON(resp)
}

// Inutilizar homologa a inutilização de uma faixa de numeração.
// POST /api/fiscal/inutilizacao
func (h *FiscalHandler) Inutilizar(c *fiber.Ctx) error {
	var in dto.InutilizarRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	resp, err := h.emissor.Inutilizar(c.Context(), &in)
	if err != nil {
		return responderErro(c, err)
	}
	return c.JSON(resp)
}

// ConsultarChave consulta a situação de um documento na SEFAZ.
// GET /api/fiscal/notas/:chave
func (h *FiscalHandler) ConsultarChave(c *fiber.Ctx) error {
	resp, err := h.emissor.ConsultarChave(c.Context(), c.Params("chave"))
	if err != nil {
		return responderErro(c, err)
	}
	return c.JSON(resp)
}

// Listar devolve as emissões registradas no terminal.
// GET /api/fiscal/notas
func (h *FiscalHandler) Listar(c *fiber.Ctx) error {
	if h.notas == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "SEM_PERSISTENCIA", Message: "terminal operando sem banco de dados"})
	}
	lista, err := h.notas.Listar(c.Context(), c.QueryInt("limite", 100))
	if err != nil {
		return responderErro(c, err)
	}
	return c.JSON(lista)
}

// StatusServico consulta a disponibilidade do autorizador.
// GET /api/fiscal/status
func (h *FiscalHandler) StatusServico(c *fiber.Ctx) error {
	return c.JSON(h.emissor.ConsultarStatus(c.Context()))
}

// Certificado devolve os dados do certificado e o alerta de vencimento.
// GET /api/fiscal/certificado
func (h *FiscalHandler) Certificado(c *fiber.Ctx) error {
	resp, err := h.emissor.StatusCertificado()
	if err != nil {
		return responderErro(c, err)
	}
	return c.JSON(resp)
}

// responderErro mapeia os erros de domínio para códigos HTTP.
func responderErro(c *fiber.Ctx, err error) error {
	var rej *domain.RejeicaoSefaz
	switch {
	case errors.Is(err, domain.ErrValidacao):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNaoEncontrado):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.As(err, &rej):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "REJEICAO_" + rej.CStat, Message: rej.XMotivo})
	case errors.Is(err, domain.ErrRejeicao):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "REJEICAO_SEFAZ", Message: err.Error()})
	case errors.Is(err, domain.ErrTransporte):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SEFAZ_INDISPONIVEL", Message: err.Error()})
	case errors.Is(err, domain.ErrCertificado):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CERTIFICADO", Message: err.Error()})
	case errors.Is(err, domain.ErrAssinatura):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "ASSINATURA", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
