// Package core defines the domain model of the ingestion pipeline: tasks
// and their lifecycle, submissions, normalized documents and chunks, the
// container/vulnerability graph nodes, and the error taxonomy shared by
// every stage.
package core
