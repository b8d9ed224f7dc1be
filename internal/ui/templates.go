package ui

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/drill/pkg/srs"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"formatDays": func(d float64) string {
		if d < 1 {
			return fmt.Sprintf("%.0fh", d*24)
		}
		return fmt.Sprintf("%.1fd", d)
	},
	"outcomeColor": func(o srs.Outcome) string {
		switch o {
		case srs.OutcomeHard:
			return "bg-red-100 text-red-800"
		case srs.OutcomeMedium:
			return "bg-yellow-100 text-yellow-800"
		case srs.OutcomeEasy:
			return "bg-green-100 text-green-800"
		default:
			return "bg-gray-100 text-gray-800"
		}
	},
	"outcomeButton": func(o srs.Outcome) string {
		switch o {
		case srs.OutcomeHard:
			return "bg-red-600 hover:bg-red-700"
		case srs.OutcomeMedium:
			return "bg-yellow-500 hover:bg-yellow-600"
		default:
			return "bg-green-600 hover:bg-green-700"
		}
	},
	"title": func(o srs.Outcome) string {
		s := string(o)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"percent": func(a, b int) int {
		if b == 0 {
			return 0
		}
		return (a * 100) / b
	},
	"show": func(v any) string {
		if v == nil {
			return "None"
		}
		return fmt.Sprintf("%v", v)
	},
}

// renderTemplate renders a template with the given data.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	_, err = tmpl.New("content").Parse(content)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	// Add shared components.
	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			_, err = tmpl.New(filepath.Base(compName)).Parse(compContent)
			if err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

// templates holds all template content.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
    <style>
        .prose pre { background: #1f2937; color: #f9fafb; padding: 0.75rem; border-radius: 0.375rem; overflow-x: auto; }
        .prose code { font-family: ui-monospace, monospace; }
        .prose p { margin-bottom: 0.75rem; }
        .prose ul { list-style: disc; padding-left: 1.5rem; }
    </style>
</head>
<body class="bg-gray-50 min-h-screen">
    {{if .Session}}
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-5xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex justify-between h-16">
                <div class="flex">
                    <a href="/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">
                        drill
                    </a>
                    <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                        <a href="/" class="border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700 inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">
                            Dashboard
                        </a>
                        <a href="/practice" class="border-transparent text-gray-500 hover:border-gray-300 hover:text-gray-700 inline-flex items-center px-1 pt-1 border-b-2 text-sm font-medium">
                            Practice
                        </a>
                    </div>
                </div>
                <div class="flex items-center">
                    <span class="text-sm text-gray-500 mr-4">{{.Session.Learner}}{{if .Session.Category}} &middot; {{.Session.Category}}{{end}}</span>
                    <a href="/logout" class="text-sm text-gray-500 hover:text-gray-700">Logout</a>
                </div>
            </div>
        </div>
    </nav>
    {{end}}

    <main class="max-w-5xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/alerts": `{{define "alerts"}}
{{if .Error}}
<div class="rounded-md bg-red-50 p-4 mb-4">
    <div class="text-sm text-red-700">{{.Error}}</div>
</div>
{{end}}
{{if .Message}}
<div class="rounded-md bg-green-50 p-4 mb-4">
    <div class="text-sm text-green-700">{{.Message}}</div>
</div>
{{end}}
{{end}}`,

	"login": `{{define "content"}}
<div class="min-h-screen flex items-center justify-center bg-gray-50 py-12 px-4 sm:px-6 lg:px-8">
    <div class="max-w-md w-full space-y-8">
        <div>
            <h2 class="mt-6 text-center text-3xl font-extrabold text-gray-900">
                drill
            </h2>
            <p class="mt-2 text-center text-sm text-gray-600">
                Spaced-repetition practice for coding exercises
            </p>
        </div>
        {{template "alerts" .}}
        <form class="mt-8 space-y-6" action="/login" method="POST">
            <div>
                <label for="learner" class="sr-only">Learner name</label>
                <input id="learner" name="learner" type="text" required
                       class="appearance-none rounded-md relative block w-full px-3 py-2 border border-gray-300 placeholder-gray-500 text-gray-900 focus:outline-none focus:ring-indigo-500 focus:border-indigo-500 sm:text-sm"
                       placeholder="Learner name">
            </div>
            <div>
                <button type="submit"
                        class="group relative w-full flex justify-center py-2 px-4 border border-transparent text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700 focus:outline-none focus:ring-2 focus:ring-offset-2 focus:ring-indigo-500">
                    Start practising
                </button>
            </div>
        </form>
    </div>
</div>
{{end}}`,

	"dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="mb-8 flex justify-between items-end">
        <div>
            <h1 class="text-2xl font-semibold text-gray-900">Dashboard</h1>
            <p class="mt-1 text-sm text-gray-500">Welcome back, {{.Session.Learner}}</p>
        </div>
        <a href="/practice" class="inline-flex items-center px-4 py-2 rounded-md text-sm font-medium text-white bg-indigo-600 hover:bg-indigo-700">Practice now</a>
    </div>

    {{template "alerts" .}}

    <div class="grid grid-cols-2 gap-5 lg:grid-cols-4 mb-8">
        <div class="bg-white shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500">Records</dt>
            <dd class="text-lg font-semibold text-gray-900">{{.Stats.TotalRecords}}</dd>
        </div>
        <div class="bg-white shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500">Due now</dt>
            <dd class="text-lg font-semibold text-indigo-600">{{.Stats.DueNow}}</dd>
        </div>
        <div class="bg-white shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500">Reviewed today</dt>
            <dd class="text-lg font-semibold text-green-600">{{.Stats.ReviewedToday}}</dd>
        </div>
        <div class="bg-white shadow rounded-lg p-5">
            <dt class="text-sm font-medium text-gray-500">Streak</dt>
            <dd class="text-lg font-semibold text-gray-900">{{.Stats.StreakDays}} days</dd>
        </div>
    </div>

    <div class="grid grid-cols-1 lg:grid-cols-3 gap-8 mb-8">
        <div class="bg-white shadow rounded-lg p-5">
            <h3 class="text-lg font-medium text-gray-900 mb-3">Ratings</h3>
            <p class="text-sm text-gray-500 mb-3">{{.Stats.Rated}} of {{.Stats.TotalRecords}} rated ({{percent .Stats.Rated .Stats.TotalRecords}}%), {{.Stats.TotalAttempts}} code runs</p>
            <ul class="space-y-2">
                {{range .Outcomes}}
                <li class="flex justify-between">
                    <span class="px-2 rounded text-sm {{outcomeColor .}}">{{title .}}</span>
                    <span class="text-sm text-gray-700">{{index $.Stats.ByOutcome .}}</span>
                </li>
                {{end}}
            </ul>
        </div>
        <div class="bg-white shadow rounded-lg p-5">
            <h3 class="text-lg font-medium text-gray-900 mb-3">Category</h3>
            <form action="/category" method="POST" class="space-y-3">
                <select name="category" class="block w-full border border-gray-300 rounded-md px-3 py-2 text-sm">
                    <option value="">All categories</option>
                    {{range .Categories}}
                    <option value="{{.}}" {{if eq . $.Session.Category}}selected{{end}}>{{.}}</option>
                    {{end}}
                </select>
                <button type="submit" class="w-full py-2 rounded-md text-sm font-medium text-white bg-indigo-600 hover:bg-indigo-700">Practise category</button>
            </form>
        </div>
        <div class="bg-white shadow rounded-lg p-5">
            <h3 class="text-lg font-medium text-gray-900 mb-3">Progress</h3>
            <a href="/progress/export" class="block text-center py-2 mb-3 rounded-md text-sm font-medium border border-gray-300 text-gray-700 hover:bg-gray-50">Download progress</a>
            <form action="/progress/import" method="POST" enctype="multipart/form-data" class="space-y-2">
                <input type="file" name="file" accept="application/json" class="block w-full text-sm text-gray-500">
                <button type="submit" class="w-full py-2 rounded-md text-sm font-medium border border-gray-300 text-gray-700 hover:bg-gray-50">Upload progress</button>
            </form>
        </div>
    </div>

    <div class="bg-white shadow rounded-lg">
        <div class="px-4 py-5 border-b border-gray-200 sm:px-6">
            <h3 class="text-lg leading-6 font-medium text-gray-900">Reviewed records</h3>
        </div>
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">#</th>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Category</th>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Rating</th>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Runs</th>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Interval</th>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Next review</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Stats.Rows}}
                <tr class="{{if .Due}}bg-indigo-50{{end}}">
                    <td class="px-4 py-2 text-sm"><a href="/practice/{{.ID}}" class="text-indigo-600 hover:text-indigo-500">{{.ID}}</a></td>
                    <td class="px-4 py-2 text-sm text-gray-700">{{.Category}}</td>
                    <td class="px-4 py-2 text-sm">{{if .Rating}}<span class="px-2 rounded {{outcomeColor .Rating}}">{{.Rating}}</span>{{else}}-{{end}}</td>
                    <td class="px-4 py-2 text-sm text-gray-700">{{.Attempts}}</td>
                    <td class="px-4 py-2 text-sm text-gray-700">{{formatDays .Interval}}</td>
                    <td class="px-4 py-2 text-sm text-gray-700">{{if .Due}}due{{else}}{{formatTime .NextReview}}{{end}}</td>
                </tr>
                {{else}}
                <tr><td colspan="6" class="px-4 py-6 text-center text-sm text-gray-500">Nothing reviewed yet.</td></tr>
                {{end}}
            </tbody>
        </table>
    </div>
</div>
{{end}}`,

	"practice": `{{define "content"}}
<div class="px-4 py-6 sm:px-0 space-y-6">
    <div class="flex justify-between items-center">
        <h1 class="text-2xl font-semibold text-gray-900">Question {{.Record.ID}} <span class="text-sm text-gray-500">of {{.Total}}</span></h1>
        <div class="text-sm text-gray-500">{{if .Record.Category}}{{.Record.Category}} &middot; {{end}}{{.Record.Lang}}</div>
    </div>

    {{template "alerts" .}}

    <div class="bg-white shadow rounded-lg p-5 prose max-w-none">{{.Prompt}}</div>

    <form action="/practice/{{.Record.ID}}/check" method="POST" class="bg-white shadow rounded-lg p-5 space-y-3">
        <label for="code" class="block text-sm font-medium text-gray-700">Your code</label>
        <textarea id="code" name="code" rows="10" spellcheck="false"
                  class="block w-full font-mono text-sm border border-gray-300 rounded-md p-3">{{.Code}}</textarea>
        <div class="flex space-x-3">
            <button type="submit" class="px-4 py-2 rounded-md text-sm font-medium text-white bg-indigo-600 hover:bg-indigo-700">Run &amp; check</button>
            <a href="/practice/{{.Record.ID}}?answer=1" class="px-4 py-2 rounded-md text-sm font-medium border border-gray-300 text-gray-700 hover:bg-gray-50">Show answer</a>
        </div>
    </form>

    {{with .Report}}
    <div class="bg-white shadow rounded-lg p-5 space-y-3">
        <div class="flex justify-between">
            <h3 class="text-lg font-medium {{if .Passed}}text-green-700{{else}}text-red-700{{end}}">
                {{if .Error}}Error{{else if .NoChecks}}Ran (no checks defined){{else if .Passed}}All checks passed{{else}}Some checks failed{{end}}
            </h3>
            <span class="text-sm text-gray-500">attempt {{.Attempts}}</span>
        </div>
        {{if .Error}}<pre class="bg-red-50 text-red-800 text-sm p-3 rounded overflow-x-auto">{{.Error}}</pre>{{end}}
        {{if .Stdout}}
        <div>
            <div class="text-xs font-medium text-gray-500 uppercase mb-1">Output</div>
            <pre class="bg-gray-800 text-gray-100 text-sm p-3 rounded overflow-x-auto">{{.Stdout}}</pre>
        </div>
        {{end}}
        {{if .Stderr}}<pre class="bg-yellow-50 text-yellow-800 text-sm p-3 rounded overflow-x-auto">{{.Stderr}}</pre>{{end}}
        <ul class="space-y-1">
            {{range .Checks}}
            <li class="text-sm {{if .Passed}}text-green-700{{else}}text-red-700{{end}}">{{if .Passed}}&#10003;{{else}}&#10007;{{end}} {{.Message}}</li>
            {{end}}
        </ul>
    </div>
    {{end}}

    {{if .ShowAnswer}}
    <div class="bg-white shadow rounded-lg p-5 space-y-3">
        <h3 class="text-lg font-medium text-gray-900">Answer</h3>
        {{if .Record.Solution}}
        <pre class="bg-gray-800 text-gray-100 text-sm p-3 rounded overflow-x-auto">{{.Record.Solution}}</pre>
        {{else}}
        <p class="text-sm text-gray-500">No solution stored for this question.</p>
        {{end}}
        {{if .Explanation}}<div class="prose max-w-none">{{.Explanation}}</div>{{end}}
        {{range .Record.Checks.Variables}}
        <div class="text-sm text-gray-600">Expected <code>{{.Name}}</code> = {{show .Expected}}</div>
        {{end}}
    </div>
    {{end}}

    <div class="bg-white shadow rounded-lg p-5">
        <h3 class="text-sm font-medium text-gray-700 mb-3">How hard was it?</h3>
        <div class="flex space-x-3">
            {{range .Outcomes}}
            <form action="/practice/{{$.Record.ID}}/rate" method="POST">
                <input type="hidden" name="outcome" value="{{.}}">
                <button type="submit" class="px-4 py-2 rounded-md text-sm font-medium text-white {{outcomeButton .}}">{{title .}}</button>
            </form>
            {{end}}
            <a href="/practice" class="px-4 py-2 rounded-md text-sm font-medium border border-gray-300 text-gray-700 hover:bg-gray-50">Skip</a>
        </div>
    </div>
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="px-4 py-16 sm:px-0 text-center">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Message}}</h1>
    <p class="mt-4"><a href="/" class="text-indigo-600 hover:text-indigo-500">Back to dashboard</a></p>
</div>
{{end}}`,
}
