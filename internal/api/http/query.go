package http

import (
	"net/http"

	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/query/planner"
)

// QueryHandler handles GET /api/v1/query/customize and
// GET /api/v1/query/manytable. Selections arrive as repeated query
// parameters. A failed query is already in the error log, so the caller is
// sent back to the landing page instead of receiving an error body.
type QueryHandler struct {
	executor  *executor.Executor
	landing   string
	manyTable bool
}

// NewCustomizeHandler creates the customize query handler.
func NewCustomizeHandler(exec *executor.Executor, landing string) *QueryHandler {
	return &QueryHandler{executor: exec, landing: landingOrRoot(landing)}
}

// NewManyTableHandler creates the manytable query handler.
func NewManyTableHandler(exec *executor.Executor, landing string) *QueryHandler {
	return &QueryHandler{executor: exec, landing: landingOrRoot(landing), manyTable: true}
}

func landingOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", GetRequestID(r.Context()))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, h.landing, http.StatusSeeOther)
		return
	}
	form := r.Form

	var (
		result interface{}
		err    error
	)
	if h.manyTable {
		result, err = h.executor.ManyTable(r.Context(), planner.ManyTableRequest{
			Columns: form["columns"],
			Tables:  form["tables"],
			Filter:  form["filter"],
		})
	} else {
		result, err = h.executor.Customize(r.Context(), planner.CustomizeRequest{
			Columns: form["columns"],
			Base:    form["base"],
			Joins:   form["joins"],
			Filter:  form["filter"],
		})
	}
	if err != nil {
		http.Redirect(w, r, h.landing, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
