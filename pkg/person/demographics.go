package person

import (
	"time"

	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/translator"
)

// ToDemographics flattens the stored graph back into the form payload.
func (p Person) ToDemographics(types *referencedata.Registry) models.Demographics {
	d := models.Demographics{
		PersonID: p.ID,
		Gender:   p.Gender,
	}
	if b, ok := p.Birth(); ok {
		year, month, day := b.Parts()
		d.BirthYear = models.FlexString(year)
		d.BirthMonth = models.FlexString(month)
		d.BirthDay = models.FlexString(day)
		if b.Estimated && !b.Sentinel() {
			d.BirthdateEstimated = "true"
		}
	}
	if n, ok := p.PreferredName(); ok {
		d.Names = models.Names{GivenName: n.GivenName, FamilyName: n.FamilyName, FamilyName2: n.FamilyName2}
	}
	for _, a := range p.Addresses {
		if !a.Voided {
			d.Addresses = models.Address{CityVillage: a.CityVillage, CountyDistrict: a.CountyDistrict}
			break
		}
	}

	if types != nil {
		for _, field := range translator.Fields {
			t := types.AttributeTypeByKey(referencedata.AttributeKey(field.Key))
			if string(t.Key) != field.Key {
				continue
			}
			if v, ok := p.AttributeValue(t.ID); ok {
				field.Set(&d, v)
			}
		}
	}

	if p.Patient != nil && len(p.Patient.Identifiers) > 0 {
		ids := models.StringMap{}
		for _, ident := range p.Patient.Identifiers {
			if ident.Voided {
				continue
			}
			name := referencedata.UnknownName
			if types != nil {
				if t, ok := types.IdentifierTypeByID(ident.TypeID); ok {
					name = t.Name
				}
			}
			ids[name] = ident.Identifier
		}
		d.Patient = &models.PatientSection{Identifiers: ids}
	}
	return d
}

// Demographics is the record as served to peer registries.
func (p Person) Demographics(types *referencedata.Registry) models.WireEnvelope {
	w := translator.ToWire(p.ToDemographics(types))
	if !p.DateChanged.IsZero() {
		w.DateChanged = p.DateChanged.UTC().Format(time.RFC3339)
	}
	return models.WireEnvelope{Person: w}
}
