// Package orchestrator wires the template store, schema resolver, value
// binder, render engine and converter into a single Generate call:
//
//	gen, err := orchestrator.New(orchestrator.WithStore(templates))
//	doc, err := gen.Generate(ctx, orchestrator.Request{
//		TemplateID: "agreement",
//		Values:     map[string]string{"agreement_number": "42", "date": "2024-01-01"},
//		Format:     document.FormatPDF,
//	})
//
// Each request runs Resolve, Bind, Render and Convert in order and aborts at
// the first failure. Errors are docerr values carrying the failing stage.
package orchestrator
