// Package teamrace schedules and scores team racing.
//
// RoundRobin produces flights of pairings with the circle method. Result
// turns the scored finishes of one race into an Outcome, and Standings
// ranks the teams' win/loss records.
package teamrace
