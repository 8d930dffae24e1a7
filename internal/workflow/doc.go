// Package workflow holds the rules for moving a production item through the
// ordered stages of its workflow: validation of workflow definitions, the
// per-action checks of operator submissions, and the advancement engine.
//
// Everything here works on in-memory snapshots. Persistence and retries
// belong to the services package.
package workflow
