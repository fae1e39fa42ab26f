// Package report persists the outcome of a deployment run.
//
// The FileRepository stores the report as indented JSON on disk so the
// invoking build orchestrator can read the result without parsing the log.
package report
