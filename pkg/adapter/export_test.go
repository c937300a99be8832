package adapter

var GeminiContents = geminiContents
