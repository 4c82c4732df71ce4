package tasks

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
)

// PageView is everything the task page shows. It doubles as the JSON body
// for GET requests that ask for application/json.
type PageView struct {
	Username string `json:"username"`
	Tasks    []Task `json:"tasks"`
	Stats    Stats  `json:"stats"`
}

// Theme holds the colors that differ between the page variants.
type Theme struct {
	Background string
	Header     string
	Surface    string
	Text       string
	Muted      string
	Accent     string
}

var themes = map[string]Theme{
	"gradient": {
		Background: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
		Header:     "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
		Surface:    "#ffffff",
		Text:       "#333333",
		Muted:      "#888888",
		Accent:     "#667eea",
	},
	"dark": {
		Background: "#121212",
		Header:     "#1f1f2e",
		Surface:    "#1e1e1e",
		Text:       "#e0e0e0",
		Muted:      "#9e9e9e",
		Accent:     "#bb86fc",
	},
	"light": {
		Background: "#f4f6f8",
		Header:     "#2f80ed",
		Surface:    "#ffffff",
		Text:       "#222222",
		Muted:      "#777777",
		Accent:     "#2f80ed",
	},
}

// ThemeNames lists the accepted values of ui.theme.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Page struct {
	tpl      *template.Template
	theme    Theme
	endpoint string
	logout   string
}

func NewPage(themeName, endpoint, logoutURL string) (*Page, error) {
	theme, ok := themes[strings.ToLower(themeName)]
	if !ok {
		return nil, fmt.Errorf("unknown theme %q (want one of %s)", themeName, strings.Join(ThemeNames(), ", "))
	}
	tpl, err := template.New("page").Funcs(template.FuncMap{
		"css": func(s string) template.CSS { return template.CSS(s) },
	}).Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	return &Page{tpl: tpl, theme: theme, endpoint: endpoint, logout: logoutURL}, nil
}

// Render writes the page only after it executed completely, so a template
// error never leaves a half-written response.
func (p *Page) Render(w io.Writer, view PageView) error {
	var buf bytes.Buffer
	err := p.tpl.Execute(&buf, struct {
		PageView
		Theme    Theme
		Endpoint string
		Logout   string
	}{view, p.theme, p.endpoint, p.logout})
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Todo List</title>
<style>
body{font-family:Arial,sans-serif;margin:0;padding:20px;min-height:100vh;background:{{css .Theme.Background}};color:{{css .Theme.Text}}}
.container{max-width:800px;margin:0 auto;background:{{css .Theme.Surface}};border-radius:15px;overflow:hidden}
.header{background:{{css .Theme.Header}};color:#fff;padding:30px;text-align:center}
.user-info{display:flex;justify-content:space-between;margin-top:15px}
.user-info a{color:#fff}
.content{padding:30px}
.stats{display:flex;gap:15px;margin-bottom:25px}
.stat-card{flex:1;text-align:center;padding:15px;border:1px solid {{css .Theme.Muted}};border-radius:10px}
.stat-number{font-size:2em;color:{{css .Theme.Accent}}}
.task-list{list-style:none;padding:0}
.task-item{display:flex;align-items:center;gap:12px;padding:12px 0;border-bottom:1px solid {{css .Theme.Muted}}}
.task-text{flex:1}
.task-text.completed{text-decoration:line-through;color:{{css .Theme.Muted}}}
.task-date{font-size:.8em;color:{{css .Theme.Muted}}}
.hidden{display:none}
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>My Todo List</h1>
    <div class="user-info">
      <span>Welcome, <strong>{{.Username}}</strong>!</span>
      {{if .Logout}}<form method="post" action="{{.Logout}}"><button type="submit">Logout</button></form>{{end}}
    </div>
  </div>
  <div class="content">
    <div id="messageDiv" class="message hidden"></div>
    <div class="stats">
      <div class="stat-card"><div class="stat-number">{{.Stats.Total}}</div><div>Total Tasks</div></div>
      <div class="stat-card"><div class="stat-number">{{.Stats.Completed}}</div><div>Completed</div></div>
      <div class="stat-card"><div class="stat-number">{{.Stats.Pending}}</div><div>Pending</div></div>
    </div>
    <form id="addTaskForm">
      <input type="text" id="taskInput" placeholder="Enter a new task..." required>
      <button type="submit" id="addBtn">Add Task</button>
    </form>
    <h2>Your Tasks</h2>
    <ul id="taskList" class="task-list">
    {{- range .Tasks}}
      <li class="task-item{{if .Completed}} completed{{end}}" data-task-id="{{.ID}}">
        <input type="checkbox" class="task-checkbox"{{if .Completed}} checked{{end}}>
        <div class="task-text{{if .Completed}} completed{{end}}">{{.Text}}
          <div class="task-date">Added: {{.CreatedAt.Local.Format "Jan 2, 2006 3:04 PM"}}</div>
        </div>
        <button class="delete-btn" type="button">Delete</button>
      </li>
    {{- else}}
      <li class="no-tasks">No tasks yet. Add your first task above!</li>
    {{- end}}
    </ul>
  </div>
</div>
<script>
const endpoint = {{.Endpoint}};
function post(fields) {
  const body = new FormData();
  for (const [k, v] of Object.entries(fields)) body.append(k, v);
  return fetch(endpoint, {method: 'POST', body: body, credentials: 'same-origin'}).then(r => r.json());
}
function showMessage(message, type) {
  const el = document.getElementById('messageDiv');
  el.textContent = message;
  el.className = 'message ' + type;
  setTimeout(() => el.classList.add('hidden'), 5000);
}
function counts() {
  const items = document.querySelectorAll('#taskList .task-item');
  const done = document.querySelectorAll('#taskList .task-item.completed').length;
  return [items.length, done, items.length - done];
}
function updateStats() {
  const nums = document.querySelectorAll('.stat-number');
  counts().forEach((n, i) => { if (nums[i]) nums[i].textContent = n; });
}
function ensureEmptyState() {
  const list = document.getElementById('taskList');
  const empty = list.querySelector('.no-tasks');
  const hasTasks = list.querySelector('.task-item') !== null;
  if (hasTasks && empty) empty.remove();
  if (!hasTasks && !empty) {
    const li = document.createElement('li');
    li.className = 'no-tasks';
    li.textContent = 'No tasks yet. Add your first task above!';
    list.appendChild(li);
  }
}
function addTaskToList(id, text) {
  const li = document.createElement('li');
  li.className = 'task-item';
  li.dataset.taskId = id;
  const box = document.createElement('input');
  box.type = 'checkbox';
  box.className = 'task-checkbox';
  const body = document.createElement('div');
  body.className = 'task-text';
  body.textContent = text;
  const date = document.createElement('div');
  date.className = 'task-date';
  date.textContent = 'Added: ' + new Date().toLocaleString('en-US', {month: 'short', day: 'numeric', year: 'numeric', hour: 'numeric', minute: '2-digit'});
  body.appendChild(date);
  const del = document.createElement('button');
  del.className = 'delete-btn';
  del.type = 'button';
  del.textContent = 'Delete';
  li.append(box, body, del);
  const list = document.getElementById('taskList');
  list.insertBefore(li, list.firstChild);
}
function report(data) {
  showMessage(data.message, data.success ? 'success' : 'error');
  return data.success;
}
function failed() { showMessage('An error occurred. Please try again.', 'error'); }
document.getElementById('addTaskForm').addEventListener('submit', e => {
  e.preventDefault();
  const input = document.getElementById('taskInput');
  const task = input.value.trim();
  if (!task) { showMessage('Please enter a task!', 'error'); return; }
  post({action: 'add_task', task: task}).then(data => {
    if (!report(data)) return;
    addTaskToList(data.task_id, task);
    input.value = '';
    ensureEmptyState();
    updateStats();
  }).catch(failed);
});
document.addEventListener('click', e => {
  if (!e.target.classList.contains('delete-btn')) return;
  const item = e.target.closest('.task-item');
  if (!confirm('Are you sure you want to delete this task?')) return;
  post({action: 'delete_task', task_id: item.dataset.taskId}).then(data => {
    if (!report(data)) return;
    item.remove();
    ensureEmptyState();
    updateStats();
  }).catch(failed);
});
document.addEventListener('change', e => {
  if (!e.target.classList.contains('task-checkbox')) return;
  const box = e.target;
  const item = box.closest('.task-item');
  post({action: 'toggle_task', task_id: item.dataset.taskId, completed: box.checked ? 1 : 0}).then(data => {
    if (!report(data)) { box.checked = !box.checked; return; }
    item.classList.toggle('completed', box.checked);
    item.querySelector('.task-text').classList.toggle('completed', box.checked);
    updateStats();
  }).catch(() => { box.checked = !box.checked; failed(); });
});
</script>
</body>
</html>
`
