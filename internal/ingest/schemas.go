package ingest

import "github.com/qbench/qbench/internal/schema"

// Upload kinds.
const (
	KindPerformance = "performance"
	KindProblems    = "problems"
)

// Performance report file columns.
const (
	colProblemID         = "Problem ID"
	colQuboVariables     = "QUBO Variables"
	colQuboQuadratic     = "QUBO Quadratic Terms"
	colSystemName        = "System Name"
	colEmbedding         = "Embedding Algorithm"
	colSolver            = "Solver"
	colURL               = "URL"
	colQubits            = "Qubits"
	colRCS               = "RCS"
	colMeanChainLength   = "Mean Chain Length"
	colMaxChainLength    = "Max Chain Length"
	colNumberOfRuns      = "Number of Runs"
	colTimeType          = "Time Type"
	colTime              = "Time"
	colPerformanceMetric = "Performance Metric"
	colPerformanceValue  = "Performance Value"
	colNotes             = "Notes"
)

// Problem file columns.
const (
	colProblem    = "Problem"
	colGraphSize  = "Graph Size"
	colGraphType  = "Graph Type"
	colProblemURL = "url"
)

// PerformanceReportSchema is the layout of a performance report upload.
var PerformanceReportSchema = schema.Schema{
	{Name: colProblemID, Type: schema.Int},
	{Name: colQuboVariables, Type: schema.Int, Nullable: true},
	{Name: colQuboQuadratic, Type: schema.Int, Nullable: true},
	{Name: colSystemName, Type: schema.Str, Nullable: true},
	{Name: colEmbedding, Type: schema.Str, Nullable: true},
	{Name: colSolver, Type: schema.Str, Nullable: true},
	{Name: colURL, Type: schema.Str, Nullable: true},
	{Name: colQubits, Type: schema.Int, Nullable: true},
	{Name: colRCS, Type: schema.Float, Nullable: true},
	{Name: colMeanChainLength, Type: schema.Int, Nullable: true},
	{Name: colMaxChainLength, Type: schema.Int, Nullable: true},
	{Name: colNumberOfRuns, Type: schema.Int, Nullable: true},
	{Name: colTimeType, Type: schema.Str, Nullable: true},
	{Name: colTime, Type: schema.Float, Nullable: true},
	{Name: colPerformanceMetric, Type: schema.Str, Nullable: true},
	{Name: colPerformanceValue, Type: schema.Float, Nullable: true},
	{Name: colNotes, Type: schema.Str, Nullable: true},
}

// ProblemSchema is the layout of a problem upload.
var ProblemSchema = schema.Schema{
	{Name: colProblem, Type: schema.Str},
	{Name: colGraphSize, Type: schema.Float, Nullable: true},
	{Name: colGraphType, Type: schema.Str},
	{Name: colProblemURL, Type: schema.Str, Nullable: true},
	{Name: colNotes, Type: schema.Str, Nullable: true},
}
