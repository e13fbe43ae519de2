package templates

import (
	"fmt"
	"html"
	"strings"
)

// InviteEmailData holds data for the invite email template
type InviteEmailData struct {
	InviterName      string
	InviteeName      string
	Code             string
	CustomMessage    string
	ExperienceCount  int
	DestinationCount int
	JoinLink         string
}

// RenderInviteEmail generates the HTML for an invite code email
func RenderInviteEmail(data InviteEmailData) string {
	greeting := "Hi there"
	if data.InviteeName != "" {
		greeting = "Hi " + html.EscapeString(data.InviteeName)
	}

	var bundle []string
	if data.ExperienceCount > 0 {
		noun := "experiences"
		if data.ExperienceCount == 1 {
			noun = "experience"
		}
		bundle = append(bundle, fmt.Sprintf("%d %s", data.ExperienceCount, noun))
	}
	if data.DestinationCount > 0 {
		noun := "destinations"
		if data.DestinationCount == 1 {
			noun = "destination"
		}
		bundle = append(bundle, fmt.Sprintf("%d %s", data.DestinationCount, noun))
	}
	bundleLine := ""
	if len(bundle) > 0 {
		bundleLine = fmt.Sprintf(`<p>This invite unlocks <strong>%s</strong> picked out for you.</p>`, strings.Join(bundle, " and "))
	}

	messageBlock := ""
	if data.CustomMessage != "" {
		messageBlock = fmt.Sprintf(`<div class="message-box"><p>%s</p></div>`, html.EscapeString(data.CustomMessage))
	}

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>You're invited to Wanderlist</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0ea5e9 0%%, #14b8a6 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #334155; line-height: 1.6; font-size: 15px; }
    .code-box { background: #f0f9ff; border: 1px dashed #0ea5e9; border-radius: 12px; padding: 20px; margin: 20px 0; text-align: center; }
    .code-box span { font-family: 'Courier New', monospace; font-size: 22px; letter-spacing: 3px; color: #0369a1; font-weight: 700; }
    .message-box { background: #f8fafc; border-left: 3px solid #14b8a6; padding: 12px 16px; margin: 20px 0; font-style: italic; }
    .cta-button { display: inline-block; background: linear-gradient(135deg, #0ea5e9 0%%, #14b8a6 100%%); color: #fff; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 700; margin-top: 20px; }
    .footer { padding: 30px; text-align: center; color: #94a3b8; font-size: 12px; border-top: 1px solid #e2e8f0; }
    .footer a { color: #0ea5e9; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s invited you to Wanderlist</h1>
    </div>
    <div class="content">
      <p>%s,</p>
      <p>%s wants to plan some travel with you on Wanderlist.</p>
      %s
      %s
      <div class="code-box"><span>%s</span></div>
      <p style="text-align:center"><a class="cta-button" href="%s">Accept the invite</a></p>
      <p>If the button does not work, enter the code above on the join page.</p>
    </div>
    <div class="footer">
      <p>&copy; Wanderlist | <a href="https://www.wanderlist.app">wanderlist.app</a></p>
      <p>You received this email because someone invited you by this address.</p>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(data.InviterName),
		greeting,
		html.EscapeString(data.InviterName),
		messageBlock,
		bundleLine,
		html.EscapeString(data.Code),
		html.EscapeString(data.JoinLink),
	)
}

// RenderAdminPasswordReset generates the HTML for an admin password reset email
func RenderAdminPasswordReset(resetLink string) string {
	body := fmt.Sprintf(`<p>A password reset was requested for your Wanderlist admin account.</p>
      <p style="text-align:center"><a class="cta-button" href="%s" style="display:inline-block;background:linear-gradient(135deg,#0ea5e9 0%%,#14b8a6 100%%);color:#fff;padding:14px 28px;border-radius:8px;text-decoration:none;font-weight:700;">Reset password</a></p>
      <p>The link is valid for one hour and can be used once. If you did not request this, ignore this email.</p>`, html.EscapeString(resetLink))

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Wanderlist Admin Password Reset</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0ea5e9 0%%, #14b8a6 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #334155; line-height: 1.6; font-size: 15px; }
    .footer { padding: 30px; text-align: center; color: #94a3b8; font-size: 12px; border-top: 1px solid #e2e8f0; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Admin Password Reset</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; Wanderlist | wanderlist.app</p>
    </div>
  </div>
</body>
</html>`, body)
}

// DigestEmailData holds data for the weekly creator digest template
type DigestEmailData struct {
	CreatorName   string
	ActiveInvites int
	TotalUses     int
}

// RenderWeeklyDigest generates the HTML for the weekly creator digest email
func RenderWeeklyDigest(data DigestEmailData) string {
	name := data.CreatorName
	if name == "" {
		name = "traveler"
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
      <p>Here is how your invites did this week:</p>
      <ul>
        <li><strong>%d</strong> invite codes still active</li>
        <li><strong>%d</strong> redemptions so far</li>
      </ul>
      <p>Log in to see who joined your plans.</p>`,
		html.EscapeString(name), data.ActiveInvites, data.TotalUses)

	return renderDigestShell(body)
}

func renderDigestShell(body string) string {
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Your weekly Wanderlist digest</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f6f8; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0ea5e9 0%%, #14b8a6 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #334155; line-height: 1.6; font-size: 15px; }
    .content ul { padding-left: 20px; }
    .footer { padding: 30px; text-align: center; color: #94a3b8; font-size: 12px; border-top: 1px solid #e2e8f0; }
    .footer a { color: #0ea5e9; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Your weekly Wanderlist digest</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; Wanderlist | <a href="https://www.wanderlist.app">wanderlist.app</a></p>
    </div>
  </div>
</body>
</html>`, body)
}
