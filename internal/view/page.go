package view

import (
	"html/template"

	"github.com/airenas/transcript-workbench/internal/api"
)

// State is an immutable snapshot of one UI session
type State struct {
	Status string

	Jobs      []*api.Job
	JobsError string
	Selected  string

	DetailsVisible bool
	DetailsLoading bool
	Detail         *api.TranscriptDetail
	ResultsError   string

	ImproveVisible bool
	Improving      bool
	Sentences      []api.Sentence
	ImproveError   string

	SaveVisible bool
	SaveLabel   string
	SaveError   string

	Manuscript        *api.Manuscript
	ManuscriptLoading bool
	ManuscriptError   string

	Recording  bool
	InputInfo  string
	InputError string
}

// Panels keeps rendered page parts, the browser swaps them in place
type Panels struct {
	Status         string        `json:"status"`
	Jobs           template.HTML `json:"jobs"`
	DetailsVisible bool          `json:"details_visible"`
	Results        template.HTML `json:"results"`
	ImproveVisible bool          `json:"improve_visible"`
	Improved       template.HTML `json:"improved"`
	SaveVisible    bool          `json:"save_visible"`
	SaveLabel      string        `json:"save_label"`
	Manuscript     template.HTML `json:"manuscript"`
	Record         template.HTML `json:"record"`
	StartEnabled   bool          `json:"start_enabled"`
	StopEnabled    bool          `json:"stop_enabled"`
}

// Render renders all panels of the state. A panel error is appended
// to the panel content, the content itself stays as it was
func Render(st *State) (*Panels, error) {
	res := &Panels{Status: st.Status, DetailsVisible: st.DetailsVisible, ImproveVisible: st.ImproveVisible,
		SaveVisible: st.SaveVisible, SaveLabel: st.SaveLabel, StartEnabled: !st.Recording, StopEnabled: st.Recording}
	var err error
	if res.Jobs, err = JobList(st.Jobs, st.Selected); err != nil {
		return nil, err
	}
	res.Jobs = withError(res.Jobs, st.JobsError)

	if st.DetailsLoading {
		res.Results = Loader("")
	} else if res.Results, err = Transcript(st.Detail); err != nil {
		return nil, err
	}
	res.Results = withError(res.Results, st.ResultsError)

	if st.Improving {
		res.Improved = Loader("Asking the AI to improve the transcript...")
	} else if res.Improved, err = Sentences(st.Sentences); err != nil {
		return nil, err
	}
	res.Improved = withError(withError(res.Improved, st.ImproveError), st.SaveError)

	if st.ManuscriptLoading {
		res.Manuscript = Loader("Generating manuscript...")
	} else if res.Manuscript, err = Manuscript(st.Manuscript); err != nil {
		return nil, err
	}
	res.Manuscript = withError(res.Manuscript, st.ManuscriptError)

	if st.InputInfo != "" {
		res.Record = template.HTML("<p>" + template.HTMLEscapeString(st.InputInfo) + "</p>")
	}
	res.Record = withError(res.Record, st.InputError)
	return res, nil
}

// Page renders the full page
func Page(st *State) (template.HTML, error) {
	p, err := Render(st)
	if err != nil {
		return "", err
	}
	return execute("page", p)
}

func withError(content template.HTML, msg string) template.HTML {
	if msg == "" {
		return content
	}
	return content + Error(msg)
}
