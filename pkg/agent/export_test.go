package agent

var WindowHistory = windowHistory
