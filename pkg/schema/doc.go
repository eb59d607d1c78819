// Package schema derives the field schema of a template: the placeholders it
// requires, enriched by the optional sidecar metadata that declares labels,
// types, choices and whether a field is required.
//
// Sidecar files are YAML (JSON is accepted, being a subset) holding one entry
// per field:
//
//	agreement_number:
//	  label: Agreement number
//	date:
//	  type: date
//	city:
//	  type: choice
//	  choices: [Oslo, Bergen]
//	notes:
//	  required: false
//
// The recognised keys are closed: anything else is rejected as invalid
// metadata rather than silently ignored.
package schema
