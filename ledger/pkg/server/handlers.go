package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	"github.com/descilabs/desci-ledger/ledger/pkg/metrics"
)

// CallerHeader carries the authenticated wallet address of the caller, set
// by the proxy in front of this service.
const CallerHeader = "X-Caller-Address"

func caller(r *http.Request) (string, error) {
	addr := r.Header.Get(CallerHeader)
	if addr == "" {
		return "", fmt.Errorf("%s header is required: %w", CallerHeader, core.ErrInvalidArgument)
	}
	return addr, nil
}

func experimentID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid experiment id %q: %w", chi.URLParam(r, "id"), core.ErrInvalidArgument)
	}
	return id, nil
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", core.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		FundingGoal  int64  `json:"funding_goal"`
		DurationDays int    `json:"duration_days"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.ledger.CreateExperiment(addr, req.Title, req.Description, req.FundingGoal, req.DurationDays)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ExperimentsCreatedTotal.Inc()
	s.persist(r.Context())
	s.writeJSON(w, http.StatusCreated, map[string]uint64{"experiment_id": id})
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.ListExperiments())
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	exp, err := s.ledger.GetExperiment(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleFundExperiment(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.FundExperiment(addr, id, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ContributionsTotal.Inc()
	metrics.ContributedAmount.Add(float64(req.Amount))
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

func (s *Server) handleRefundContributions(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	amount, err := s.ledger.RefundContributions(addr, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.RefundsTotal.Inc()
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int64{"refunded": amount})
}

func (s *Server) handleProcessFundingSuccess(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.ProcessFundingSuccess(addr, id); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.SettlementsTotal.Inc()
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) handleGetContribution(w http.ResponseWriter, r *http.Request) {
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := s.ledger.Contribution(id, chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}

func (s *Server) handleGetResearcherFunds(w http.ResponseWriter, r *http.Request) {
	funds := s.ledger.ResearcherFunds(chi.URLParam(r, "address"))
	s.writeJSON(w, http.StatusOK, map[string]int64{"funds": funds})
}

func (s *Server) handleAddDataset(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Name         string `json:"name"`
		MetadataHash string `json:"metadata_hash"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	dsID, err := s.ledger.AddDataset(addr, id, req.Name, req.MetadataHash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusCreated, map[string]uint64{"dataset_id": dsID})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	id, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sets, err := s.ledger.ListDatasets(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sets)
}

func datasetID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "datasetID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid dataset id %q: %w", chi.URLParam(r, "datasetID"), core.ErrInvalidArgument)
	}
	return id, nil
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	expID, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dsID, err := datasetID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ds, err := s.ledger.GetDataset(expID, dsID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleMintDatasetNFT(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	expID, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dsID, err := datasetID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.MintDatasetNFT(addr, expID, dsID); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func (s *Server) handleCiteDataset(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	expID, err := experimentID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dsID, err := datasetID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Context string `json:"context"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	citationID, err := s.ledger.CiteDataset(addr, expID, dsID, req.Context)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusCreated, map[string]uint64{"citation_id": citationID})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Policy())
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Stats())
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, DefaultLimit)
	transactions := s.ledger.Transactions(p.Offset, p.Limit)
	s.writeJSON(w, http.StatusOK, PaginatedResponse[core.FinancialTransaction]{
		Items:  transactions,
		Total:  len(transactions),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

func (s *Server) handleRecordYield(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.RecordYield(addr, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleDistributeProfits(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	dist, err := s.ledger.DistributeQuarterlyProfits(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.DistributionsTotal.Inc()
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, dist)
}

func (s *Server) handleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		ID             string     `json:"id"`
		Name           string     `json:"name"`
		TargetProgress int        `json:"target_progress"`
		KPIs           []core.KPI `json:"kpis"`
		PhaseID        string     `json:"phase_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.CreateMilestone(addr, req.ID, req.Name, req.TargetProgress, req.KPIs, req.PhaseID); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusCreated, map[string]string{"milestone_id": req.ID})
}

func (s *Server) handleGetMilestone(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.GetMilestone(chi.URLParam(r, "id")))
}

func (s *Server) handleUpdateMilestoneProgress(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Progress int `json:"progress"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.UpdateMilestoneProgress(addr, chi.URLParam(r, "id"), req.Progress); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleUpdateMilestoneKPI(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, fmt.Errorf("invalid kpi index %q: %w", chi.URLParam(r, "index"), core.ErrInvalidArgument))
		return
	}

	var req struct {
		Value int64 `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.UpdateMilestoneKPI(addr, chi.URLParam(r, "id"), index, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleUploadMilestoneData(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Title   string `json:"title"`
		DataURI string `json:"data_uri"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	rec, err := s.ledger.UploadMilestoneData(addr, chi.URLParam(r, "id"), req.Title, req.DataURI)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetMilestoneData(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.MilestoneData(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetPhaseProgress(w http.ResponseWriter, r *http.Request) {
	progress := s.ledger.PhaseProgress(chi.URLParam(r, "id"))
	s.writeJSON(w, http.StatusOK, map[string]int{"progress": progress})
}

func (s *Server) handleAddProjectManager(w http.ResponseWriter, r *http.Request) {
	addr, err := caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.AddProjectManager(addr, req.Address); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}
