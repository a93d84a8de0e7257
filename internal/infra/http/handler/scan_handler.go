package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/vulnwatch/api/internal/app/ingest"
	"github.com/vulnwatch/api/pkg/apierror"
	"github.com/vulnwatch/api/pkg/domain/scan"
	"github.com/vulnwatch/api/pkg/domain/shared"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/validator"
)

// ScanHandler handles scan upload and retrieval requests.
type ScanHandler struct {
	ingestService *ingest.Service
	scans         scan.Repository
	findings      vulnerability.FindingRepository
	validator     *validator.Validator
	logger        *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(
	ingestSvc *ingest.Service,
	scans scan.Repository,
	findings vulnerability.FindingRepository,
	v *validator.Validator,
	log *logger.Logger,
) *ScanHandler {
	return &ScanHandler{
		ingestService: ingestSvc,
		scans:         scans,
		findings:      findings,
		validator:     v,
		logger:        log.With("handler", "scan"),
	}
}

// UploadParams identifies the upload target. All values come from query
// parameters so the body can stay the raw scanner report. Either
// project_id, or the project/organization pair, must be set.
type UploadParams struct {
	ProjectID    string `validate:"omitempty,uuid"`
	Project      string `validate:"required_without=ProjectID,max=255"`
	Organization string `validate:"required_without=ProjectID,max=255"`
	Artifact     string `validate:"max=512"`
	ToolVersion  string `validate:"max=64"`
}

// UploadResponse represents the result of a scan upload.
type UploadResponse struct {
	ScanID               string         `json:"scan_id"`
	ProjectID            string         `json:"project_id"`
	FindingsCreated      int            `json:"findings_created"`
	FindingsUpdated      int            `json:"findings_updated"`
	FindingsAutoResolved int            `json:"findings_auto_resolved"`
	LicensesRecorded     int            `json:"licenses_recorded"`
	BySeverity           map[string]int `json:"by_severity"`
	Errors               []string       `json:"errors,omitempty"`
}

// Upload handles POST /api/v1/scans. The body is the raw scanner
// report; project and organization come from query parameters so CI
// uploaders can pipe the report file straight through.
func (h *ScanHandler) Upload(w http.ResponseWriter, r *http.Request) {
	params := UploadParams{
		ProjectID:    r.URL.Query().Get("project_id"),
		Project:      r.URL.Query().Get("project"),
		Organization: r.URL.Query().Get("organization"),
		Artifact:     r.URL.Query().Get("artifact"),
		ToolVersion:  r.URL.Query().Get("tool_version"),
	}
	if err := h.validator.Validate(params); err != nil {
		handleValidationError(w, err)
		return
	}

	var projectID *shared.ID
	if params.ProjectID != "" {
		id, err := shared.IDFromString(params.ProjectID)
		if err != nil {
			apierror.BadRequest("Invalid project ID").WriteJSON(w)
			return
		}
		projectID = &id
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		apierror.BadRequest("Failed to read request body").WriteJSON(w)
		return
	}
	if len(raw) == 0 {
		apierror.BadRequest("Request body is empty").WriteJSON(w)
		return
	}

	out, err := h.ingestService.Ingest(r.Context(), ingest.Input{
		ProjectID:    projectID,
		ProjectName:  params.Project,
		Organization: params.Organization,
		ArtifactName: params.Artifact,
		ToolVersion:  params.ToolVersion,
		Source: scan.SourceMetadata{
			Pipeline:  r.Header.Get("X-Pipeline"),
			Commit:    r.Header.Get("X-Commit"),
			Branch:    r.Header.Get("X-Branch"),
			ActorID:   r.Header.Get(HeaderActorID),
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		},
		Raw: raw,
	})
	if err != nil {
		h.logger.Error("scan upload failed",
			"project", params.Project,
			"organization", params.Organization,
			"error", err)
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	response := UploadResponse{
		ScanID:               out.ScanID.String(),
		ProjectID:            out.ProjectID.String(),
		FindingsCreated:      out.FindingsCreated,
		FindingsUpdated:      out.FindingsUpdated,
		FindingsAutoResolved: out.FindingsAutoResolved,
		LicensesRecorded:     out.LicensesRecorded,
		BySeverity:           make(map[string]int, len(out.BySeverity)),
		Errors:               out.Errors,
	}
	for severity, count := range out.BySeverity {
		response.BySeverity[severity.String()] = count
	}

	writeJSONResponse(w, http.StatusCreated, response)
}

// ScanResponse represents a scan result.
type ScanResponse struct {
	ID             string              `json:"id"`
	ProjectID      string              `json:"project_id"`
	ArtifactName   string              `json:"artifact_name"`
	ArtifactType   string              `json:"artifact_type,omitempty"`
	ArtifactDigest string              `json:"artifact_digest,omitempty"`
	ArtifactTag    string              `json:"artifact_tag,omitempty"`
	ToolVersion    string              `json:"tool_version,omitempty"`
	SchemaVersion  int                 `json:"schema_version"`
	Source         scan.SourceMetadata `json:"source"`
	Summary        ScanSummaryResponse `json:"summary"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ScanSummaryResponse represents the derived scan aggregates.
type ScanSummaryResponse struct {
	TotalFindings int            `json:"total_findings"`
	BySeverity    map[string]int `json:"by_severity"`
	AutoResolved  int            `json:"auto_resolved"`
	Licenses      int            `json:"licenses"`
}

// Get handles GET /api/v1/scans/{id}.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid scan ID").WriteJSON(w)
		return
	}

	s, err := h.scans.GetByID(r.Context(), id)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSONResponse(w, http.StatusOK, toScanResponse(s))
}

// ListByProject handles GET /api/v1/projects/{id}/scans.
func (h *ScanHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	result, err := h.scans.ListByProject(r.Context(), projectID, parsePagination(r))
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	scans := make([]ScanResponse, len(result.Data))
	for i, s := range result.Data {
		scans[i] = toScanResponse(s)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"data":        scans,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// FindingResponse represents a finding.
type FindingResponse struct {
	ID               string    `json:"id"`
	ScanID           string    `json:"scan_id"`
	VulnerabilityID  string    `json:"vulnerability_id"`
	CVEID            string    `json:"cve_id"`
	PkgName          string    `json:"pkg_name"`
	InstalledVersion string    `json:"installed_version,omitempty"`
	FixedVersion     string    `json:"fixed_version,omitempty"`
	PkgPath          string    `json:"pkg_path,omitempty"`
	Layer            string    `json:"layer,omitempty"`
	Target           string    `json:"target,omitempty"`
	Fingerprint      string    `json:"fingerprint"`
	Status           string    `json:"status"`
	AssigneeID       *string   `json:"assignee_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListFindings handles GET /api/v1/scans/{id}/findings.
func (h *ScanHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	scanID, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid scan ID").WriteJSON(w)
		return
	}

	result, err := h.findings.ListByScan(r.Context(), scanID, parsePagination(r))
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	findings := make([]FindingResponse, len(result.Data))
	for i, f := range result.Data {
		findings[i] = toFindingResponse(f)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"data":        findings,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// Delete handles DELETE /api/v1/scans/{id}. Administrative; findings
// and license observations cascade.
func (h *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		apierror.BadRequest("Invalid scan ID").WriteJSON(w)
		return
	}

	if err := h.scans.Delete(r.Context(), id); err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toScanResponse(s *scan.ScanResult) ScanResponse {
	summary := ScanSummaryResponse{
		TotalFindings: s.Summary.TotalFindings,
		BySeverity:    make(map[string]int, len(s.Summary.BySeverity)),
		AutoResolved:  s.Summary.AutoResolved,
		Licenses:      s.Summary.Licenses,
	}
	for severity, count := range s.Summary.BySeverity {
		summary.BySeverity[severity.String()] = count
	}

	return ScanResponse{
		ID:             s.ID.String(),
		ProjectID:      s.ProjectID.String(),
		ArtifactName:   s.ArtifactName,
		ArtifactType:   s.ArtifactType,
		ArtifactDigest: s.ArtifactDigest,
		ArtifactTag:    s.ArtifactTag,
		ToolVersion:    s.ToolVersion,
		SchemaVersion:  s.SchemaVersion,
		Source:         s.Source,
		Summary:        summary,
		CreatedAt:      s.CreatedAt,
	}
}

func toFindingResponse(f *vulnerability.Finding) FindingResponse {
	resp := FindingResponse{
		ID:               f.ID.String(),
		ScanID:           f.ScanID.String(),
		VulnerabilityID:  f.VulnerabilityID.String(),
		CVEID:            f.CVEID,
		PkgName:          f.PkgName,
		InstalledVersion: f.InstalledVersion,
		FixedVersion:     f.FixedVersion,
		PkgPath:          f.PkgPath,
		Layer:            f.Layer,
		Target:           f.Target,
		Fingerprint:      f.Fingerprint,
		Status:           f.Status.String(),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
	if f.AssigneeID != nil {
		s := f.AssigneeID.String()
		resp.AssigneeID = &s
	}
	return resp
}
