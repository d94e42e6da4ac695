package views

// Page scripts read the base path and CSRF token from data attributes on
// <body>, so no server values are interpolated into JavaScript.

const apiScript = `
function api(path, body) {
  var d = document.body.dataset;
  return fetch(d.base + path, {
    method: 'POST',
    credentials: 'same-origin',
    headers: {'Content-Type': 'application/json', 'X-CSRF-Token': d.csrf},
    body: JSON.stringify(body)
  }).then(function (res) {
    return res.json().catch(function () { return {}; }).then(function (data) {
      return {ok: res.ok, status: res.status, data: data};
    });
  });
}
`

const createScript = apiScript + `
(function () {
  var root = document.getElementById('create');
  var list = document.getElementById('questions');
  var tpl = document.getElementById('question-template');
  var errBox = document.getElementById('create-error');

  function showError(msg) { errBox.textContent = msg; errBox.hidden = !msg; }

  function renumber() {
    list.querySelectorAll('.question').forEach(function (q, i) {
      q.querySelector('.num').textContent = i + 1;
    });
  }

  function addQuestion() {
    var node = tpl.content.firstElementChild.cloneNode(true);
    node.querySelector('.remove').addEventListener('click', function () {
      if (list.children.length > 1) { node.remove(); renumber(); }
    });
    var gen = node.querySelector('.generate');
    gen.addEventListener('click', function () {
      var problem = node.querySelector('.problem').value.trim();
      if (!problem) return;
      gen.disabled = true;
      gen.textContent = root.dataset.msgGenerating;
      api('/api/generate-rubric', {problem_text: problem}).then(function (r) {
        if (r.ok) { node.querySelector('.rubric').value = r.data.rubric; showError(''); }
        else { showError(r.data.error || root.dataset.msgFailed); }
      }).catch(function () { showError(root.dataset.msgFailed); }).finally(function () {
        gen.disabled = false;
        gen.textContent = root.dataset.msgGenerate;
      });
    });
    list.appendChild(node);
    renumber();
  }

  document.getElementById('add-question').addEventListener('click', addQuestion);
  document.getElementById('save').addEventListener('click', function () {
    var questions = [];
    list.querySelectorAll('.question').forEach(function (q, i) {
      questions.push({
        problem_text: q.querySelector('.problem').value.trim(),
        rubric: q.querySelector('.rubric').value.trim(),
        order_index: i + 1
      });
    });
    var title = document.getElementById('title').value.trim();
    api('/api/assignments', {title: title, questions: questions}).then(function (r) {
      if (r.ok) { location.href = document.body.dataset.base + '/teacher/assignment/' + r.data.assignment_id; }
      else { showError(r.data.error || root.dataset.msgFailed); }
    }).catch(function () { showError(root.dataset.msgFailed); });
  });

  addQuestion();
})();
`

const studentScript = apiScript + `
(function () {
  var root = document.getElementById('student');
  var nameInput = document.getElementById('student-name');

  document.querySelectorAll('.answer').forEach(function (card) {
    var canvas = card.querySelector('canvas');
    var ctx = canvas.getContext('2d');
    var result = card.querySelector('.result');
    var submit = card.querySelector('.submit');
    var drawing = false, drawn = false;

    function reset() {
      ctx.fillStyle = '#fff';
      ctx.fillRect(0, 0, canvas.width, canvas.height);
      ctx.lineWidth = 3; ctx.lineCap = 'round'; ctx.strokeStyle = '#111';
      drawn = false;
    }
    function point(e) {
      var r = canvas.getBoundingClientRect();
      return {x: (e.clientX - r.left) * canvas.width / r.width, y: (e.clientY - r.top) * canvas.height / r.height};
    }
    canvas.addEventListener('pointerdown', function (e) {
      drawing = true; canvas.setPointerCapture(e.pointerId);
      var p = point(e); ctx.beginPath(); ctx.moveTo(p.x, p.y);
    });
    canvas.addEventListener('pointermove', function (e) {
      if (!drawing) return;
      var p = point(e); ctx.lineTo(p.x, p.y); ctx.stroke(); drawn = true;
    });
    ['pointerup', 'pointercancel', 'pointerleave'].forEach(function (t) {
      canvas.addEventListener(t, function () { drawing = false; });
    });
    card.querySelector('.clear').addEventListener('click', function () { reset(); result.textContent = ''; });

    submit.addEventListener('click', function () {
      var name = nameInput.value.trim();
      if (!name) { result.textContent = root.dataset.msgName; nameInput.focus(); return; }
      if (!drawn) { result.textContent = root.dataset.msgDraw; return; }
      submit.disabled = true;
      result.textContent = root.dataset.msgGrading;
      api('/api/grade', {
        question_id: card.dataset.question,
        student_name: name,
        image_base64: canvas.toDataURL('image/png')
      }).then(function (r) {
        if (!r.ok) { result.textContent = r.data.error || root.dataset.msgFailed; return; }
        result.innerHTML = '';
        var score = document.createElement('strong');
        score.textContent = root.dataset.msgScore + ': ' + r.data.score + ' / 100';
        var feedback = document.createElement('p');
        feedback.textContent = r.data.feedback;
        result.appendChild(score);
        result.appendChild(feedback);
      }).catch(function () { result.textContent = root.dataset.msgFailed; })
        .finally(function () { submit.disabled = false; });
    });

    reset();
  });
})();
`
