package handler

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/xilidan/roboscribe/services/scribe/entity"
	"github.com/xilidan/roboscribe/services/scribe/usecase"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorBlue   = 0x3498db

	previewLength = 100
	viewLength    = 1000
	nameLength    = 200
)

// truncate cuts s to n characters and marks the cut with an ellipsis.
func truncate(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]) + "...", true
}

func members(n int) string {
	return fmt.Sprintf("%d member(s)", n)
}

func RecordingStarted(res *usecase.BeginResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎙️ Recording Started",
		Description: fmt.Sprintf("Now recording in **%s**", res.ChannelName),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Participants", Value: members(res.Participants), Inline: true},
			{Name: "Status", Value: "🔴 Live", Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Use /stop_recording to finish"},
	}
}

func Progress(stage usecase.Stage) *discordgo.MessageEmbed {
	if stage == usecase.StageTranscribing {
		return &discordgo.MessageEmbed{
			Title:       "⏳ Transcribing Audio",
			Description: "Processing audio chunks... This may take a moment for longer recordings.",
			Color:       colorBlue,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "⏳ Processing Recording",
		Description: "Stopping recording and processing audio...",
		Color:       colorBlue,
	}
}

func TranscriptSaved(res *usecase.EndResult) *discordgo.MessageEmbed {
	preview, _ := truncate(res.Text, previewLength)
	return &discordgo.MessageEmbed{
		Title:       "✅ Transcript Saved",
		Description: fmt.Sprintf("Recording **'%s'** has been processed and saved!", res.Name),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Transcript ID", Value: fmt.Sprintf("`%d`", res.ID), Inline: true},
			{Name: "Participants", Value: members(len(res.Participants)), Inline: true},
			{Name: "Preview", Value: preview},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Use /view_id %d to see the full transcript", res.ID),
		},
	}
}

func SearchResults(res *usecase.SearchResult) *discordgo.MessageEmbed {
	if res.Total == 0 {
		return &discordgo.MessageEmbed{
			Title:       "🔍 No Results",
			Description: fmt.Sprintf("No transcripts found matching **'%s'**", res.Term),
			Color:       colorOrange,
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📝 Search Results",
		Description: fmt.Sprintf("Found %d transcript(s) matching **'%s'**", res.Total, res.Term),
		Color:       colorBlue,
	}
	for i, item := range res.Items {
		name, _ := truncate(item.Name, nameLength)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s", i+1, name),
			Value: fmt.Sprintf("ID: `%d` • Date: %s", item.ID, item.Day()),
		})
	}

	footer := "Use /view_id [ID] to view a transcript"
	if res.Total > len(res.Items) {
		footer = fmt.Sprintf("Showing %d of %d results", len(res.Items), res.Total)
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	return embed
}

func TranscriptView(t *entity.Transcript) *discordgo.MessageEmbed {
	text, textCut := truncate(t.Text, viewLength)
	summary, summaryCut := truncate(t.Summary, viewLength)
	if text == "" {
		text = "No transcript available"
	}
	if summary == "" {
		summary = "No summary available"
	}
	name, _ := truncate(t.Name, nameLength)

	embed := &discordgo.MessageEmbed{
		Title: "📄 " + name,
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📅 Date", Value: t.Day(), Inline: true},
			{Name: "🆔 ID", Value: fmt.Sprintf("`%d`", t.ID), Inline: true},
			{Name: "👥 Participants", Value: members(len(t.Participants)), Inline: true},
			{Name: "📝 Transcript", Value: text},
			{Name: "✨ AI Summary", Value: summary},
		},
	}
	if textCut || summaryCut {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "⚠️ Content truncated due to length"}
	}
	return embed
}

func NotFound(id int64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Not Found",
		Description: fmt.Sprintf("No transcript found with ID `%d`", id),
		Color:       colorRed,
	}
}

// Failure renders err for the command that produced it.
func Failure(command string, err error) *discordgo.MessageEmbed {
	switch {
	case errors.Is(err, usecase.ErrNotInVoice):
		return errorEmbed("❌ Error", "You must be in a voice channel to start recording!", colorRed)
	case errors.Is(err, usecase.ErrAlreadyRecording):
		return errorEmbed("⚠️ Already Recording", "A recording is already in progress in this server!", colorOrange)
	case errors.Is(err, usecase.ErrNoRecording):
		return errorEmbed("❌ No Active Recording", "There's no recording in progress!", colorRed)
	case errors.Is(err, usecase.ErrEmptyName):
		return errorEmbed("❌ Error", "Please give the transcript a name.", colorRed)
	case errors.Is(err, usecase.ErrNoAudio):
		return errorEmbed("🔇 No Audio Detected", "The recording contains no speech or is too short. Please try again.", colorOrange)
	case errors.Is(err, usecase.ErrAudioMissing):
		return errorEmbed("❌ Recording Error", "Audio file was not created. Please try again.", colorRed)
	case errors.Is(err, usecase.ErrNoSpeech):
		return errorEmbed("🔇 No Speech Detected",
			"Could not detect any speech in the recording. Please ensure clear speech with minimal background noise.", colorRed)
	}

	switch command {
	case CommandStartRecording:
		return errorEmbed("❌ Connection Error", "Failed to start recording: "+err.Error(), colorRed)
	case CommandStopRecording:
		return errorEmbed("❌ Error Processing Recording", "Failed to process recording: "+err.Error(), colorRed)
	default:
		return errorEmbed("❌ Error", "Something went wrong: "+err.Error(), colorRed)
	}
}

func errorEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: color}
}
