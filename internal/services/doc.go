// Package services holds cross-cutting helpers shared by the external
// service clients and the stage handlers: the error taxonomy used for
// retry-vs-terminal classification, and context annotation for structured
// logging.
package services
