package server

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/expedition/internal/compositor"
	"github.com/playperu/expedition/internal/party"
)

// HealthStatus is one dependency entry of the /healthz response.
type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
}

type partyParam struct {
	ID string `path:"id" description:"Expedition id."`
}

type squareParams struct {
	Square    string `query:"square" required:"true" description:"Map square, e.g. H8."`
	Quadrant  string `query:"quadrant" description:"Current quadrant Q1-Q4; never fogged."`
	NoMask    bool   `query:"noMask" description:"Skip fog layers."`
	Highlight bool   `query:"highlight" description:"Outline the current quadrant."`
}

// PathImageUploadRequest documents the multipart form of a path upload.
type PathImageUploadRequest struct {
	PartyID    string                `formData:"partyId" required:"true"`
	SquareID   string                `formData:"squareId" description:"Defaults to the party's square."`
	QuadrantID string                `formData:"quadrantId" description:"Fit the drawing into this quadrant."`
	File       *multipart.FileHeader `formData:"file" required:"true"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Expedition API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Cooperative map exploration parties: forming, running and drawing expeditions.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /parties
	createParty, _ := r.NewOperationContext(http.MethodPost, "/parties")
	createParty.SetSummary("Create expedition")
	createParty.SetDescription("Opens a party at a starting quadrant with the caller's character as leader. Requires Bearer token.")
	createParty.AddReqStructure(CreatePartyRequest{})
	createParty.AddRespStructure(CreatePartyResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createParty.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createParty.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(createParty)

	// GET /parties/{id}
	getParty, _ := r.NewOperationContext(http.MethodGet, "/parties/{id}")
	getParty.SetSummary("Get expedition")
	getParty.SetDescription("Returns the party with its resolved outcome, map view and item images.")
	getParty.AddReqStructure(partyParam{})
	getParty.AddRespStructure(party.View{}, openapi.WithHTTPStatus(http.StatusOK))
	getParty.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getParty)

	// POST /parties/{id}/join
	join, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/join")
	join.SetSummary("Join expedition")
	join.SetDescription("Adds the caller's character with up to three items. Requires Bearer token.")
	join.AddReqStructure(partyParam{})
	join.AddReqStructure(JoinRequest{})
	join.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(join)

	// PATCH /parties/{id}/items
	items, _ := r.NewOperationContext(http.MethodPatch, "/parties/{id}/items")
	items.SetSummary("Change items")
	items.SetDescription("Replaces the caller's loadout before the run starts. Requires Bearer token.")
	items.AddReqStructure(partyParam{})
	items.AddReqStructure(ItemsRequest{})
	items.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	items.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	items.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(items)

	// POST /parties/{id}/leave
	leave, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/leave")
	leave.SetSummary("Leave expedition")
	leave.SetDescription("Removes the caller's character and refunds its items. Requires Bearer token.")
	leave.AddReqStructure(partyParam{})
	leave.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	leave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(leave)

	// POST /parties/{id}/remove
	remove, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/remove")
	remove.SetSummary("Remove member")
	remove.SetDescription("Removes another member and refunds their items. Requires Bearer token of a member.")
	remove.AddReqStructure(partyParam{})
	remove.AddReqStructure(RemoveRequest{})
	remove.AddRespStructure(RemoveResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	remove.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	remove.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(remove)

	// POST /parties/{id}/start
	start, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/start")
	start.SetSummary("Start expedition")
	start.SetDescription("Leader starts the run and opens its chat thread. Repeating it reopens the same thread.")
	start.AddReqStructure(partyParam{})
	start.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(start)

	// POST /parties/{id}/cancel
	cancel, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/cancel")
	cancel.SetSummary("Cancel expedition")
	cancel.SetDescription("Leader abandons an open party; every member is refunded.")
	cancel.AddReqStructure(partyParam{})
	cancel.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	cancel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(cancel)

	// POST /parties/{id}/reveal
	reveal, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/reveal")
	reveal.SetSummary("Reveal quadrant")
	reveal.SetDescription("Moves the party onto a quadrant and records it as explored on the map.")
	reveal.AddReqStructure(partyParam{})
	reveal.AddReqStructure(RevealRequest{})
	reveal.AddRespStructure(RevealResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	reveal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(reveal)

	// POST /parties/{id}/end
	end, _ := r.NewOperationContext(http.MethodPost, "/parties/{id}/end")
	end.SetSummary("End expedition")
	end.SetDescription("Leader closes the run with outcome success or failed.")
	end.AddReqStructure(partyParam{})
	end.AddReqStructure(EndRequest{})
	end.AddRespStructure(EndResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	end.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(end)

	// GET /parties/{id}/events
	events, _ := r.NewOperationContext(http.MethodGet, "/parties/{id}/events")
	events.SetSummary("SSE event stream")
	events.SetDescription("Server-Sent Events stream of party changes.")
	events.AddReqStructure(partyParam{})
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(events)

	// GET /parties/{id}/ws
	ws, _ := r.NewOperationContext(http.MethodGet, "/parties/{id}/ws")
	ws.SetSummary("WebSocket event stream")
	ws.SetDescription("Upgrades to a WebSocket that carries the same events as the SSE stream.")
	ws.AddReqStructure(partyParam{})
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(ws)

	// POST /path-images/upload
	upload, _ := r.NewOperationContext(http.MethodPost, "/path-images/upload")
	upload.SetSummary("Upload path drawing")
	upload.SetDescription("Composites a member's drawing onto a square and makes it the square's path image.")
	upload.AddReqStructure(PathImageUploadRequest{})
	upload.AddRespStructure(PathImageResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	upload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	upload.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(upload)

	// GET /square-image
	squareImage, _ := r.NewOperationContext(http.MethodGet, "/square-image")
	squareImage.SetSummary("Render square")
	squareImage.SetDescription("Returns the square as a PNG with fog over hidden quadrants.")
	squareImage.AddReqStructure(squareParams{})
	squareImage.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	squareImage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	squareImage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(squareImage)

	// GET /square-preview
	preview, _ := r.NewOperationContext(http.MethodGet, "/square-preview")
	preview.SetSummary("Square layer manifest")
	preview.SetDescription("Lists the layers a client needs to draw the square itself.")
	preview.AddReqStructure(squareParams{})
	preview.AddRespStructure(compositor.Manifest{}, openapi.WithHTTPStatus(http.StatusOK))
	preview.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(preview)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.HandlerFunc {
	return v5emb.New("Expedition API", "/openapi.json", "/docs").ServeHTTP
}
