package view

const jobListTmpl = `{{range .Jobs}}<li class="job-item{{if .IsProcessing}} processing{{end}}{{if eq .ID $.Selected}} selected{{end}}" data-id="{{.ID}}"{{if .IsProcessing}} style="color: gray;"{{end}}>{{.OriginalFilename}} - {{.Status}} - {{timestamp .CreatedAt.Time}}</li>{{end}}`

const transcriptTmpl = `<h3>Whisper Transcription:</h3>
<p>{{or .WhisperTranscript "N/A"}}</p>
<hr>
<h3>Corti Transcription:</h3>
<p>{{or .CortiTranscript "N/A"}}</p>`

const sentencesTmpl = `<ul>{{range $i, $s := .}}
<li class="{{if $s.IsUncertain}}uncertain-sentence{{end}}" data-index="{{$i}}">
<div class="sentence-container">
<div class="sentence-text{{if $s.IsUncertain}} uncertain-sentence{{end}}" contenteditable="true" data-index="{{$i}}">{{if $s.HasMedicalTerminology}}<span class="medical-icon">` + MedicalIcon + `</span>{{end}}{{highlight $s.Text $s.SpecificUncertainWord}}</div>
{{if or $s.BestModelForMedicalTerminology $s.BestEverydaySpeech}}<div class="labels-container">{{with $s.BestModelForMedicalTerminology}}<span class="label {{labelClass .}}" data-type="med" data-value="{{.}}">Med: {{.}}</span>{{end}}{{with $s.BestEverydaySpeech}}<span class="label {{labelClass .}}" data-type="speech" data-value="{{.}}">Speech: {{.}}</span>{{end}}</div>{{end}}
</div>
</li>{{end}}
</ul>`

const manuscriptTmpl = `<h3>{{.Title}}</h3>
<p>{{lines .Prose}}</p>
<h4>Key Takeaways:</h4>
<ul>{{range .KeyTakeaways}}<li>{{.}}</li>{{end}}</ul>`

const errorTmpl = `<p class="error" style="color: red;">Error: {{.}}</p>`

const loaderTmpl = `<div class="loader"></div>{{with .}}<p>{{.}}</p>{{end}}`

const pageTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transcript Workbench</title>
<style>
.job-item { cursor: pointer; }
.job-item.selected { font-weight: bold; }
.uncertain-sentence { background: #fff3cd; }
.uncertain-word { text-decoration: underline wavy red; }
.label { font-size: 0.8em; margin-right: 0.5em; padding: 0 0.3em; border: 1px solid #ccc; }
.loader { width: 1em; height: 1em; border: 2px solid #ccc; border-top-color: #333; border-radius: 50%; animation: spin 1s linear infinite; }
@keyframes spin { to { transform: rotate(360deg); } }
</style>
</head>
<body>
<section id="manuscriptSection">
<h2>Manuscript</h2>
<input id="manuscriptTopic" type="text" placeholder="Topic">
<button id="generateManuscriptButton">Generate</button>
<div id="manuscriptOutput"{{if not .Manuscript}} style="display: none;"{{end}}>{{.Manuscript}}</div>
</section>
<section id="uploadSection">
<h2>Transcription</h2>
<input id="audioFileInput" type="file" accept="audio/*">
<button id="startRecordButton"{{if not .StartEnabled}} disabled{{end}}>Start recording</button>
<button id="stopRecordButton"{{if not .StopEnabled}} disabled{{end}}>Stop recording</button>
<div id="recordStatus">{{.Record}}</div>
<p id="status">{{.Status}}</p>
<ul id="jobList">{{.Jobs}}</ul>
</section>
<section id="detailsSection"{{if not .DetailsVisible}} style="display: none;"{{end}}>
<div id="results">{{.Results}}</div>
<div id="improveSection"{{if not .ImproveVisible}} style="display: none;"{{end}}>
<button id="improveButton">Improve</button>
<div id="improvedResults">{{.Improved}}</div>
<div id="saveButtonContainer"{{if not .SaveVisible}} style="display: none;"{{end}}><button id="saveButton">{{.SaveLabel}}</button></div>
</div>
</section>
<script>
(function () {
  const $ = (id) => document.getElementById(id);
  const show = (el, on) => { el.style.display = on ? 'block' : 'none'; };
  let editing = false;
  function apply(p) {
    $('status').textContent = p.status;
    $('jobList').innerHTML = p.jobs;
    show($('detailsSection'), p.details_visible);
    $('results').innerHTML = p.results;
    show($('improveSection'), p.improve_visible);
    if (!editing) { $('improvedResults').innerHTML = p.improved; }
    show($('saveButtonContainer'), p.save_visible);
    $('saveButton').textContent = p.save_label;
    show($('manuscriptOutput'), p.manuscript !== '');
    $('manuscriptOutput').innerHTML = p.manuscript;
    $('recordStatus').innerHTML = p.record;
    $('startRecordButton').disabled = !p.start_enabled;
    $('stopRecordButton').disabled = !p.stop_enabled;
  }
  async function post(url, body) {
    const r = await fetch(url, { method: 'POST', body: body });
    if (r.ok) { apply(await r.json()); }
  }
  async function refresh() {
    const r = await fetch('/ui/state');
    if (r.ok) { apply(await r.json()); }
  }
  $('jobList').addEventListener('click', (e) => {
    if (e.target.matches('.job-item')) { post('/ui/jobs/' + encodeURIComponent(e.target.dataset.id) + '/select'); }
  });
  $('audioFileInput').addEventListener('change', (e) => {
    const f = e.target.files[0];
    if (f) { const fd = new FormData(); fd.append('file', f); post('/ui/upload', fd); }
  });
  $('improveButton').addEventListener('click', () => post('/ui/improve'));
  $('saveButton').addEventListener('click', () => post('/ui/save'));
  $('generateManuscriptButton').addEventListener('click', () => {
    const fd = new FormData(); fd.append('topic', $('manuscriptTopic').value); post('/ui/manuscript', fd);
  });
  $('improvedResults').addEventListener('focusin', () => { editing = true; });
  $('improvedResults').addEventListener('focusout', (e) => {
    editing = false;
    const el = e.target.closest('.sentence-text');
    if (el) { const fd = new FormData(); fd.append('text', el.innerText); post('/ui/sentences/' + el.dataset.index, fd); }
  });
  let ws = null, rec = null;
  $('startRecordButton').addEventListener('click', async () => {
    let stream;
    try {
      stream = await navigator.mediaDevices.getUserMedia({ audio: true });
    } catch (err) {
      const p = document.createElement('p');
      p.style.color = 'red';
      p.textContent = 'Error: ' + err.message;
      $('recordStatus').replaceChildren(p);
      return;
    }
    ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ui/ws/record');
    ws.onmessage = () => refresh();
    ws.onopen = () => {
      rec = new MediaRecorder(stream);
      ws.send(JSON.stringify({ event: 'START_RECORDING', format: rec.mimeType }));
      rec.ondataavailable = (e) => { if (e.data.size > 0) { ws.send(e.data); } };
      rec.onstop = () => { stream.getTracks().forEach((t) => t.stop()); ws.send('STOP_RECORDING'); };
      rec.start(1000);
    };
  });
  $('stopRecordButton').addEventListener('click', () => { if (rec) { rec.stop(); rec = null; } });
  setInterval(refresh, 1000);
})();
</script>
</body>
</html>`
