package documents

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/identity"
	"github.com/domus-pm/domus/internal/platform/httpx"
)

// Handler exposes the document vault over JSON. Every route sits behind
// organization access; mutations additionally pass the write gate.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   access.Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard access.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers document routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/organizations/{organizationID}/documents", func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Use(h.guard.RequireOrganization("organizationID"))
		r.Get("/", h.list)
		r.Get("/{documentID}", h.download)
		r.With(h.guard.RequireWrite(access.OpCreate)).Post("/", h.upload)
		r.With(h.guard.RequireWrite(access.OpDelete)).Delete("/{documentID}", h.delete)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document does not exist")
	case errors.Is(err, ErrTooLarge):
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Too Large", "document exceeds the upload limit")
	default:
		h.logger.Error("documents request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", param+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	docs, err := h.service.List(r.Context(), orgID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	actorID, _ := identity.ActorID(r.Context())

	if err := r.ParseMultipartForm(MaxDocumentSize); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request must be multipart/form-data with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "file field is required")
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(r.Context(), UploadInput{
		OrganizationID: orgID,
		UploadedBy:     actorID,
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		SizeBytes:      header.Size,
		Body:           file,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

type downloadResponse struct {
	Document Document `json:"document"`
	URL      string   `json:"url"`
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	docID, ok := h.urlID(w, r, "documentID")
	if !ok {
		return
	}
	doc, url, err := h.service.DownloadURL(r.Context(), orgID, docID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, downloadResponse{Document: doc, URL: url})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.urlID(w, r, "organizationID")
	if !ok {
		return
	}
	docID, ok := h.urlID(w, r, "documentID")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), orgID, docID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
