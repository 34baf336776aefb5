package workflow

// Facts carries the trip attributes that transition guards depend on.
type Facts struct {
	HasTravelAdmin  bool
	OptionSelected  bool
	VisaRequest     bool
	OptionsUploaded bool
}

func hasTravelAdmin(f Facts) bool  { return f.HasTravelAdmin }
func optionSelected(f Facts) bool  { return f.OptionSelected }
func visaRequest(f Facts) bool     { return f.VisaRequest }
func optionsUploaded(f Facts) bool { return f.OptionsUploaded }
