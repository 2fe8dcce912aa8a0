package rpc

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/bmir-radx/harmonization-framework/internal/jobs"
)

// Orchestrator is the part of *jobs.Orchestrator the dispatcher needs.
type Orchestrator interface {
	Submit(params jobs.HarmonizeParams) (string, error)
	Get(id string) (jobs.Job, error)
}

// Dispatcher routes RPC requests to methods.
type Dispatcher struct {
	jobs    Orchestrator
	methods map[string]func(Request) Response
}

// NewDispatcher creates a dispatcher over o.
func NewDispatcher(o Orchestrator) *Dispatcher {
	d := &Dispatcher{jobs: o}
	d.methods = map[string]func(Request) Response{
		MethodHarmonize: d.harmonize,
		MethodGetJob:    d.getJob,
	}
	return d
}

// Dispatch handles one request. It never fails; errors are reported in the
// response envelope.
func (d *Dispatcher) Dispatch(req Request) Response {
	method, ok := d.methods[NormalizeMethod(req.Method)]
	if !ok {
		return Failure(jobs.Errorf(jobs.CodeMethodNotFound, "Unknown method: %s", req.Method))
	}
	return method(req)
}

func (d *Dispatcher) harmonize(req Request) Response {
	params, err := jobs.ParseParams(paramsOrEmpty(req.Params))
	if err != nil {
		return Failure(validationFailure(err, req.Params))
	}
	id, err := d.jobs.Submit(params)
	if err != nil {
		return Failure(validationFailure(err, req.Params))
	}
	return Response{Status: StatusAccepted, JobID: id}
}

func (d *Dispatcher) getJob(req Request) Response {
	var params struct {
		JobID any `json:"job_id"`
	}
	if err := json.Unmarshal(paramsOrEmpty(req.Params), &params); err != nil {
		return Failure(validationFailure(err, req.Params))
	}
	id, _ := params.JobID.(string)
	if id == "" {
		return Failure(jobs.NewError(jobs.CodeMissingField, "job_id is required", map[string]any{"field": "job_id"}))
	}
	job, err := d.jobs.Get(id)
	if err != nil {
		return Failure(jobs.AsError(err))
	}
	return Response{Status: StatusSuccess, Result: job}
}

func paramsOrEmpty(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []byte("{}")
	}
	return raw
}

func validationFailure(err error, params json.RawMessage) *jobs.Error {
	var details map[string]any
	if len(params) > 0 {
		details = map[string]any{"params": params}
	}
	message := err.Error()
	var jerr *jobs.Error
	if errors.As(err, &jerr) {
		message = jerr.Message
	}
	return jobs.NewError(jobs.CodeValidation, message, details)
}
