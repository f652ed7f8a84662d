package delivery

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/interactive-solutions/go-delivery/internal"
)

type HttpHandler struct {
	app *application
}

// Router wires every endpoint onto a fresh mux router.
func (h *HttpHandler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/tasks", h.ScheduleTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks", h.GetAllTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{id}", h.CancelTask).Methods(http.MethodDelete)
	router.HandleFunc("/records", h.GetRecords).Methods(http.MethodGet)
	router.HandleFunc("/import", h.ImportTasks).Methods(http.MethodPost)
	router.HandleFunc("/contacts", h.GetAllContacts).Methods(http.MethodGet)
	router.HandleFunc("/contacts", h.CreateContact).Methods(http.MethodPost)
	router.HandleFunc("/contacts/{id}", h.GetContact).Methods(http.MethodGet)
	router.HandleFunc("/contacts/{id}", h.UpdateContact).Methods(http.MethodPut)
	router.HandleFunc("/contacts/{id}", h.DeleteContact).Methods(http.MethodDelete)
	router.HandleFunc("/templates", h.GetAllTemplates).Methods(http.MethodGet)
	router.HandleFunc("/templates", h.CreateTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}", h.GetTemplate).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}", h.UpdateTemplate).Methods(http.MethodPut)
	router.HandleFunc("/templates/{id}", h.DeleteTemplate).Methods(http.MethodDelete)

	return router
}

func (h *HttpHandler) ScheduleTask(w http.ResponseWriter, r *http.Request) {
	body := &internal.ScheduleTaskRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	priority, ok := ParsePriority(body.Priority)
	if !ok {
		http.Error(w, "Unknown priority", 400)
		return
	}

	channel := Channel(body.Channel)

	content := body.Content
	if body.TemplateUuid != "" {
		templateId, parseErr := uuid.Parse(body.TemplateUuid)
		if parseErr != nil {
			http.Error(w, "Invalid template id", 400)
			return
		}

		rendered, renderErr := h.app.renderTemplate(templateId, body.Parameters)
		if renderErr == TemplateNotFoundErr {
			http.Error(w, "Template not found", 404)
			return
		} else if renderErr != nil {
			http.Error(w, "Failed to render the template", 500)
			return
		}

		content = rendered
	}

	var (
		id  uuid.UUID
		err error
	)

	switch {
	case body.EveryMinutes > 0:
		every := time.Duration(body.EveryMinutes) * time.Minute
		start := time.Now().Add(every)

		if body.At != "" {
			if start, err = time.Parse(time.RFC3339, body.At); err != nil {
				http.Error(w, "Invalid start time, RFC3339 expected", 400)
				return
			}
		}

		id, err = h.app.ScheduleEvery(channel, body.Recipient, content, priority, start, every)

	case len(body.Weekdays) > 0:
		weekdays := make([]time.Weekday, 0, len(body.Weekdays))
		for _, day := range body.Weekdays {
			if day < 0 || day > 6 {
				http.Error(w, "Weekdays must be 0 (Sunday) through 6 (Saturday)", 400)
				return
			}

			weekdays = append(weekdays, time.Weekday(day))
		}

		id, err = h.app.ScheduleWeekly(channel, body.Recipient, content, priority, weekdays, body.AtTime)

	case body.At != "":
		at, parseErr := time.Parse(time.RFC3339, body.At)
		if parseErr != nil {
			http.Error(w, "Invalid due time, RFC3339 expected", 400)
			return
		}

		id, err = h.app.ScheduleAt(channel, body.Recipient, content, priority, at)

	default:
		id, err = h.app.Send(channel, body.Recipient, content, priority)
	}

	if err != nil {
		if _, ok := err.(ValidationError); ok {
			http.Error(w, err.Error(), 400)
			return
		}

		http.Error(w, "Failed to schedule the delivery task", 500)
		return
	}

	writeJson(w, 201, struct {
		Uuid uuid.UUID `json:"uuid"`
	}{id})
}

func (h *HttpHandler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	writeJson(w, 200, struct {
		Data []Task `json:"data"`
	}{h.app.Tasks()})
}

func (h *HttpHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := routeUuid(r)
	if err != nil {
		http.Error(w, "Invalid task id", 400)
		return
	}

	switch err := h.app.Cancel(id); err {
	case nil:
		w.WriteHeader(http.StatusNoContent)

	case TaskNotFoundErr:
		http.Error(w, "Task not found", 404)

	case TaskInFlightErr:
		http.Error(w, "Task is already in flight", 409)

	default:
		http.Error(w, "Failed to cancel the task", 500)
	}
}

func (h *HttpHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	criteria := RecordCriteria{
		Outcome: Outcome(query.Get("outcome")),
		Channel: Channel(query.Get("channel")),
	}

	if raw := query.Get("after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid after time, RFC3339 expected", 400)
			return
		}

		criteria.After = after
	}

	if raw := query.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid before time, RFC3339 expected", 400)
			return
		}

		criteria.Before = before
	}

	criteria.Offset, _ = strconv.Atoi(query.Get("offset"))
	criteria.Limit, _ = strconv.Atoi(query.Get("limit"))

	records, total, err := h.app.Records(criteria)
	if err != nil {
		http.Error(w, "Failed to query the delivery log", 500)
		return
	}

	writeJson(w, 200, struct {
		Data  []Record `json:"data"`
		Total int      `json:"total"`
	}{records, total})
}

func (h *HttpHandler) ImportTasks(w http.ResponseWriter, r *http.Request) {
	body := &internal.ImportRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	priority, ok := ParsePriority(body.Priority)
	if !ok {
		http.Error(w, "Unknown priority", 400)
		return
	}

	var templateId uuid.UUID
	if body.TemplateUuid != "" {
		var parseErr error
		if templateId, parseErr = uuid.Parse(body.TemplateUuid); parseErr != nil {
			http.Error(w, "Invalid template id", 400)
			return
		}
	}

	rows := make([]ImportRow, 0, len(body.Rows))
	for _, row := range body.Rows {
		rows = append(rows, ImportRow{
			Recipient:  row.Recipient,
			Content:    row.Content,
			Parameters: row.Parameters,
		})
	}

	ids, err := h.app.Import(rows, ImportOptions{
		Channel:       Channel(body.Channel),
		Priority:      priority,
		TestRecipient: body.TestRecipient,
		TemplateUuid:  templateId,
	})
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	writeJson(w, 201, struct {
		Data []uuid.UUID `json:"data"`
	}{ids})
}

func (h *HttpHandler) GetAllContacts(w http.ResponseWriter, r *http.Request) {
	if h.app.contactRepo == nil {
		http.Error(w, "No contact repository configured", 500)
		return
	}

	contacts, err := h.app.contactRepo.GetAll()
	if err != nil {
		http.Error(w, "Failed to retrieve contacts", 500)
		return
	}

	writeJson(w, 200, struct {
		Data []Contact `json:"data"`
	}{contacts})
}

func (h *HttpHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.contactFromRoute(w, r)
	if !ok {
		return
	}

	writeJson(w, 200, contact)
}

func (h *HttpHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	if h.app.contactRepo == nil {
		http.Error(w, "No contact repository configured", 500)
		return
	}

	body := &internal.ContactRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	contact := contactFromRequest(body)
	contact.Uuid = uuid.New()
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt

	if err := contact.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if err := h.app.contactRepo.Create(contact); err != nil {
		http.Error(w, "Failed to create the contact", 500)
		return
	}

	writeJson(w, 201, contact)
}

func (h *HttpHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.contactFromRoute(w, r)
	if !ok {
		return
	}

	body := &internal.ContactRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	updated := contactFromRequest(body)
	updated.Uuid = contact.Uuid
	updated.CreatedAt = contact.CreatedAt
	updated.UpdatedAt = time.Now()

	if err := updated.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if err := h.app.contactRepo.Update(updated); err != nil {
		http.Error(w, "Failed to update the contact", 500)
		return
	}

	writeJson(w, 200, updated)
}

func (h *HttpHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := h.contactFromRoute(w, r)
	if !ok {
		return
	}

	if err := h.app.contactRepo.Delete(&contact); err != nil {
		http.Error(w, "Failed to delete the contact", 500)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HttpHandler) GetAllTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.app.templateRepo.GetAll()
	if err != nil {
		http.Error(w, "Failed to retrieve templates", 500)
		return
	}

	writeJson(w, 200, struct {
		Data []Template `json:"data"`
	}{templates})
}

func (h *HttpHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateFromRoute(w, r)
	if !ok {
		return
	}

	writeJson(w, 200, template)
}

func (h *HttpHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	body := &internal.TemplateRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	template := templateFromRequest(body)
	template.Uuid = uuid.New()
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt

	if err := template.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if err := h.app.templateRepo.Create(template); err != nil {
		http.Error(w, "Failed to create the template", 500)
		return
	}

	writeJson(w, 201, template)
}

func (h *HttpHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateFromRoute(w, r)
	if !ok {
		return
	}

	body := &internal.TemplateRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		http.Error(w, "Failed to parse incoming json", 400)
		return
	}

	updated := templateFromRequest(body)
	updated.Uuid = template.Uuid
	updated.CreatedAt = template.CreatedAt
	updated.UpdatedAt = time.Now()

	if err := updated.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if err := h.app.templateRepo.Update(updated); err != nil {
		http.Error(w, "Failed to update the template", 500)
		return
	}

	writeJson(w, 200, updated)
}

func (h *HttpHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateFromRoute(w, r)
	if !ok {
		return
	}

	if err := h.app.templateRepo.Delete(&template); err != nil {
		http.Error(w, "Failed to delete the template", 500)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HttpHandler) templateFromRoute(w http.ResponseWriter, r *http.Request) (Template, bool) {
	id, err := routeUuid(r)
	if err != nil {
		http.Error(w, "Invalid template id", 400)
		return Template{}, false
	}

	template, err := h.app.templateRepo.Get(id)
	if err != nil {
		if err == TemplateNotFoundErr {
			http.Error(w, "Template not found", 404)
			return Template{}, false
		}

		http.Error(w, "Failed to retrieve the template", 500)
		return Template{}, false
	}

	return template, true
}

func templateFromRequest(body *internal.TemplateRequest) *Template {
	return &Template{
		Name:     body.Name,
		Category: body.Category,
		Content:  body.Content,
	}
}

func (h *HttpHandler) contactFromRoute(w http.ResponseWriter, r *http.Request) (Contact, bool) {
	if h.app.contactRepo == nil {
		http.Error(w, "No contact repository configured", 500)
		return Contact{}, false
	}

	id, err := routeUuid(r)
	if err != nil {
		http.Error(w, "Invalid contact id", 400)
		return Contact{}, false
	}

	contact, err := h.app.contactRepo.Get(id)
	if err != nil {
		if err == ContactNotFoundErr {
			http.Error(w, "Contact not found", 404)
			return Contact{}, false
		}

		http.Error(w, "Failed to retrieve the contact", 500)
		return Contact{}, false
	}

	return contact, true
}

func contactFromRequest(body *internal.ContactRequest) *Contact {
	addresses := map[Channel]string{}
	for channel, address := range body.Addresses {
		addresses[Channel(channel)] = address
	}

	return &Contact{
		Name:      body.Name,
		Addresses: addresses,
	}
}

func routeUuid(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func writeJson(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to convert to json", 500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
