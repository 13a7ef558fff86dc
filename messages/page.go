package messages

import (
	"html/template"
	"io"
)

var adminPage = template.Must(template.New("admin").Funcs(template.FuncMap{
	"received": func(m Message) string {
		t := m.Time()
		if t.IsZero() {
			return m.Timestamp
		}
		return t.Format("2006-01-02 03:04 PM")
	},
}).Parse(`<html>
<head>
    <title>Anonymous Messages - Sudarshan's Portfolio</title>
    <style>
        body {
            font-family: 'MS Sans Serif', Arial, sans-serif;
            margin: 20px;
            background: #c0c0c0;
            border: 2px solid;
            border-color: #dfdfdf #808080 #808080 #dfdfdf;
            padding: 20px;
        }
        .header {
            background: #000080;
            color: white;
            padding: 10px;
            margin-bottom: 15px;
            border: 2px solid;
            border-color: #dfdfdf #808080 #808080 #dfdfdf;
        }
        .message {
            background: white;
            border: 2px solid;
            border-color: #808080 #dfdfdf #dfdfdf #808080;
            margin: 10px 0;
            padding: 15px;
        }
        .timestamp { color: #666; font-size: 11px; margin-top: 8px; }
        .message-id {
            background: #000080;
            color: white;
            padding: 2px 6px;
            font-size: 10px;
            border-radius: 3px;
        }
        .button-95 {
            padding: 5px 15px;
            background: #c0c0c0;
            border: 2px solid;
            border-color: #dfdfdf #808080 #808080 #dfdfdf;
            font-family: 'MS Sans Serif', Arial, sans-serif;
            cursor: pointer;
            margin: 5px;
        }
        .button-95:active { border-color: #808080 #dfdfdf #dfdfdf #808080; }
    </style>
</head>
<body>
    <div class="header">
        <h1>📨 Anonymous Messages Received</h1>
        <p>Total Messages: {{len .}}</p>
        <button class="button-95" onclick="location.reload()">Refresh</button>
        <button class="button-95" onclick="window.location.href='/'">Back to Portfolio</button>
    </div>
{{- if not .}}
    <div class="message">
        <p>No messages yet. Check back later!</p>
    </div>
{{- else}}{{range .}}
    <div class="message">
        <span class="message-id">Message #{{.ID}}</span>
        <p style="margin: 10px 0; font-size: 14px; line-height: 1.4;">{{.Message}}</p>
        <div class="timestamp">📅 Received: {{received .}}</div>
    </div>
{{- end}}{{end}}
</body>
</html>
`))

// RenderAdminPage writes the message list as an HTML page. Message text is escaped.
func RenderAdminPage(w io.Writer, msgs []Message) error {
	return adminPage.Execute(w, msgs)
}
