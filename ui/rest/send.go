package rest

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/usecase"
)

type Send struct {
	Service usecase.ISendUsecase
}

func InitRestSend(app fiber.Router, service usecase.ISendUsecase) Send {
	rest := Send{Service: service}

	group := app.Group("/connections/:id")
	group.Post("/send/text", rest.SendText)
	group.Post("/send/media", rest.SendMedia)
	group.Post("/send/buttons", rest.SendButtons)
	group.Post("/send/list", rest.SendList)
	group.Post("/send/contact", rest.SendContact)
	group.Post("/send/template", rest.SendTemplate)
	group.Post("/message/:message_id/edit", rest.EditMessage)
	group.Post("/message/:message_id/delete", rest.DeleteMessage)
	group.Post("/message/read", rest.MarkAsRead)
	group.Post("/presence", rest.SendPresence)

	return rest
}

func connectionID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

type sendTextRequest struct {
	To      string `json:"to" form:"to"`
	Body    string `json:"body" form:"body"`
	QuoteID string `json:"quote_id" form:"quote_id"`
}

func (controller *Send) SendText(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendTextRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	req := message.Text(request.To, request.Body)
	req.QuoteID = request.QuoteID

	response, err := controller.Service.Send(c.UserContext(), id, req)
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Message sent", response)
}

type sendMediaRequest struct {
	To       string `json:"to" form:"to"`
	Type     string `json:"type" form:"type"`
	URL      string `json:"url" form:"url"`
	MimeType string `json:"mime_type" form:"mime_type"`
	FileName string `json:"file_name" form:"file_name"`
	Caption  string `json:"caption" form:"caption"`
	QuoteID  string `json:"quote_id" form:"quote_id"`
}

// SendMedia accepts either a JSON body referencing media by URL or a
// multipart form carrying the bytes in a "file" field.
func (controller *Send) SendMedia(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendMediaRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	media := message.Media{
		Type:     message.MediaType(request.Type),
		URL:      request.URL,
		MimeType: request.MimeType,
		FileName: request.FileName,
		Caption:  request.Caption,
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return responseBadRequest(c, err.Error())
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return responseBadRequest(c, err.Error())
		}
		media.Data = data
		media.URL = ""
		if media.FileName == "" {
			media.FileName = fileHeader.Filename
		}
		if media.MimeType == "" {
			media.MimeType = fileHeader.Header.Get("Content-Type")
		}
	}

	req := message.WithMedia(request.To, media)
	req.QuoteID = request.QuoteID

	response, err := controller.Service.Send(c.UserContext(), id, req)
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Media sent", response)
}

type sendButtonsRequest struct {
	To      string           `json:"to"`
	Body    string           `json:"body"`
	Buttons []message.Button `json:"buttons"`
	QuoteID string           `json:"quote_id"`
}

func (controller *Send) SendButtons(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendButtonsRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	response, err := controller.Service.Send(c.UserContext(), id, message.SendRequest{
		To:      request.To,
		Kind:    message.KindButtons,
		Body:    request.Body,
		Buttons: request.Buttons,
		QuoteID: request.QuoteID,
	})
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Buttons sent", response)
}

type sendListRequest struct {
	To       string                `json:"to"`
	Body     string                `json:"body"`
	ListText string                `json:"list_text"`
	Sections []message.ListSection `json:"sections"`
	QuoteID  string                `json:"quote_id"`
}

func (controller *Send) SendList(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendListRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	response, err := controller.Service.Send(c.UserContext(), id, message.SendRequest{
		To:       request.To,
		Kind:     message.KindList,
		Body:     request.Body,
		ListText: request.ListText,
		Sections: request.Sections,
		QuoteID:  request.QuoteID,
	})
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "List sent", response)
}

type sendContactRequest struct {
	To      string          `json:"to"`
	Contact message.Contact `json:"contact"`
}

func (controller *Send) SendContact(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendContactRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	response, err := controller.Service.Send(c.UserContext(), id, message.SendRequest{
		To:      request.To,
		Kind:    message.KindContact,
		Contact: &request.Contact,
	})
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Contact sent", response)
}

type sendTemplateRequest struct {
	To       string           `json:"to"`
	Template message.Template `json:"template"`
}

func (controller *Send) SendTemplate(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request sendTemplateRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	response, err := controller.Service.Send(c.UserContext(), id, message.SendRequest{
		To:       request.To,
		Kind:     message.KindTemplate,
		Template: &request.Template,
	})
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Template sent", response)
}

type editMessageRequest struct {
	To      string    `json:"to"`
	NewBody string    `json:"new_body"`
	SentAt  time.Time `json:"sent_at"`
}

func (controller *Send) EditMessage(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request editMessageRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	response, err := controller.Service.Edit(c.UserContext(), id, request.To, c.Params("message_id"), request.NewBody, request.SentAt)
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Message updated", response)
}

type deleteMessageRequest struct {
	To     string    `json:"to"`
	SentAt time.Time `json:"sent_at"`
}

func (controller *Send) DeleteMessage(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request deleteMessageRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	if err := controller.Service.Delete(c.UserContext(), id, request.To, c.Params("message_id"), request.SentAt); err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Message deleted", nil)
}

type markAsReadRequest struct {
	To  string   `json:"to"`
	IDs []string `json:"ids"`
}

func (controller *Send) MarkAsRead(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request markAsReadRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	controller.Service.MarkAsRead(c.UserContext(), id, request.To, request.IDs)
	return responseOK(c, "Read receipts sent", nil)
}

type presenceRequest struct {
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

func (controller *Send) SendPresence(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	var request presenceRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	controller.Service.SendPresence(c.UserContext(), id, request.To, request.Typing)
	return responseOK(c, "Presence updated", nil)
}
