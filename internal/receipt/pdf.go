package receipt

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// PDFPrinter renders the receipt as a PDF; browsers print it from their
// built-in viewer.
type PDFPrinter struct{}

func (PDFPrinter) Render(d Document) (Rendered, error) {
	m := maroto.New()

	m.AddRows(
		text.NewRow(12, "Mboa Care", props.Text{Style: fontstyle.Bold, Size: 16, Align: align.Center}),
		text.NewRow(6, d.Number()+" - "+d.GeneratedAt.Format("02/01/2006 15:04"), props.Text{Size: 9, Align: align.Center}),
		line.NewRow(6),
	)

	label := props.Text{Style: fontstyle.Bold, Size: 10}
	value := props.Text{Size: 10}
	field := func(name, v string) {
		m.AddRow(8, text.NewCol(4, name, label), text.NewCol(8, v, value))
	}
	patient := d.Patient.FullName()
	if d.Patient.ID != "" {
		patient += " (" + d.Patient.ID + ")"
	}
	field("Patient", patient)
	if d.Patient.Telephone != "" {
		field("Tel.", d.Patient.Telephone)
	}
	field("Libellé", d.Invoice.Libelle)
	field("Type", d.TypeLabel)
	field("Date", d.Invoice.DateCreation.Format("02/01/2006"))

	m.AddRows(
		line.NewRow(6),
		text.NewRow(10, d.Amount(), props.Text{Style: fontstyle.Bold, Size: 14, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{ContentType: "application/pdf", Body: doc.GetBytes()}, nil
}
